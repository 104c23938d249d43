package providercsv_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/MrJamesThe3rd/payflow/internal/payment"
	"github.com/MrJamesThe3rd/payflow/internal/statement/providercsv"
)

func TestParser_Stripe(t *testing.T) {
	csv := `id,PaymentIntent ID,Created date (UTC),Amount,Amount Refunded,Currency,Status
ch_1,pi_1,2026-10-01 09:30:00,"1,250.00",0.00,usd,Paid
ch_2,pi_2,2026-10-02 10:00:00,40.00,40.00,eur,Refunded
ch_3,,2026-10-02 11:00:00,5.00,0.00,usd,Failed
`

	lines, err := providercsv.NewParser(providercsv.Stripe).Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, 2, lines[0].Row)
	assert.Equal(t, "pi_1", lines[0].TransactionID)
	assert.True(t, decimal.NewFromInt(1250).Equal(lines[0].Amount))
	assert.Equal(t, payment.CurrencyUSD, lines[0].Currency)
	assert.Equal(t, payment.StatusCompleted, lines[0].Status)
	assert.Equal(t, time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC), lines[0].Date)

	assert.Equal(t, 3, lines[1].Row)
	assert.Equal(t, "pi_2", lines[1].TransactionID)
	assert.Equal(t, payment.CurrencyEUR, lines[1].Currency)
	assert.Equal(t, payment.StatusRefunded, lines[1].Status)
}

func TestParser_MoMo(t *testing.T) {
	csv := `BÁO CÁO GIAO DỊCH
Từ ngày,01/10/2026,Đến ngày,31/10/2026

STT,Mã giao dịch,Mã đơn hàng,Thời gian tạo,Số tiền,Trạng thái
1,2800001,momo_a,05/10/2026 14:03:11,150.000,Thành công
2,2800002,momo_b,06/10/2026 08:00:00,"75.500",Thất bại
Tổng cộng,,,,225.500,
`

	lines, err := providercsv.NewParser(providercsv.MoMo).Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, lines, 2)

	// Preamble and the blank line above the header still count.
	assert.Equal(t, 5, lines[0].Row)
	assert.Equal(t, 6, lines[1].Row)
	assert.Equal(t, "momo_a", lines[0].TransactionID)
	assert.True(t, decimal.NewFromInt(150000).Equal(lines[0].Amount))
	assert.Equal(t, payment.CurrencyVND, lines[0].Currency)
	assert.Equal(t, payment.StatusCompleted, lines[0].Status)
	assert.Equal(t, time.Date(2026, 10, 5, 14, 3, 11, 0, time.UTC), lines[0].Date)

	assert.Equal(t, "momo_b", lines[1].TransactionID)
	assert.True(t, decimal.NewFromInt(75500).Equal(lines[1].Amount))
	assert.Equal(t, payment.StatusFailed, lines[1].Status)
}

// win1258 encodes s, which must spell tone marks as combining characters the
// way Windows-1258 stores them.
func win1258(t *testing.T, s string) []byte {
	t.Helper()

	b, err := charmap.Windows1258.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)

	return b
}

func TestParser_ZaloPayLegacyCodePage(t *testing.T) {
	csv := "Ma\u0303 giao di\u0323ch merchant;Nga\u0300y giao di\u0323ch;S\u00f4\u0301 ti\u00ea\u0300n;Tra\u0323ng tha\u0301i\n" +
		"zalopay_x;07/10/2026 10:15;1.200.000;Tha\u0300nh c\u00f4ng\n"

	lines, err := providercsv.NewParser(providercsv.ZaloPay).Parse(bytes.NewReader(win1258(t, csv)))
	require.NoError(t, err)
	require.Len(t, lines, 1)

	assert.Equal(t, "zalopay_x", lines[0].TransactionID)
	assert.True(t, decimal.NewFromInt(1200000).Equal(lines[0].Amount))
	assert.Equal(t, payment.StatusCompleted, lines[0].Status)
	assert.Equal(t, time.Date(2026, 10, 7, 10, 15, 0, 0, time.UTC), lines[0].Date)
}

func TestParser_Errors(t *testing.T) {
	type testCase struct {
		name    string
		profile providercsv.Profile
		input   string
		wantErr string
	}

	tests := []testCase{
		{
			name:    "WrongExport",
			profile: providercsv.Stripe,
			input:   "Data mov.;Descrição;Montante\n30-01-2026;Café;-1,00\n",
			wantErr: "not a stripe-payments export",
		},
		{
			name:    "UnknownStatus",
			profile: providercsv.Stripe,
			input:   "PaymentIntent ID,Amount,Currency,Status\npi_1,10.00,usd,Disputed\n",
			wantErr: `row 2: unknown status "Disputed"`,
		},
		{
			name:    "InvalidAmount",
			profile: providercsv.Stripe,
			input:   "PaymentIntent ID,Amount,Currency,Status\npi_1,ten,usd,Paid\n",
			wantErr: `row 2: invalid amount "ten"`,
		},
		{
			name:    "UnsupportedCurrency",
			profile: providercsv.Stripe,
			input:   "PaymentIntent ID,Amount,Currency,Status\npi_1,10.00,gbp,Paid\n",
			wantErr: "row 2:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := providercsv.NewParser(tt.profile).Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
