package providercsv

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

// numberStyle says which separator marks decimals in an amount cell.
type numberStyle int

const (
	// numberDot reads "1,234.56" as one thousand two hundred and thirty-four.
	numberDot numberStyle = iota
	// numberComma reads "1.500.000" and "1.234,56" the Vietnamese way.
	numberComma
)

// Profile describes the column layout of one provider's settlement export.
type Profile struct {
	Name  string
	Comma rune
	// Encoding is the code page of legacy exports that are not UTF-8.
	Encoding encoding.Encoding

	TxCol     string
	AmountCol string
	// CurrencyCol is optional; Currency applies when it is empty.
	CurrencyCol string
	Currency    payment.Currency
	StatusCol   string
	DateCol     string
	DateLayout  string

	Numbers  numberStyle
	Statuses map[string]payment.Status
}

func (p Profile) requiredCols() []string {
	cols := []string{p.TxCol, p.AmountCol, p.StatusCol}
	if p.CurrencyCol != "" {
		cols = append(cols, p.CurrencyCol)
	}

	return cols
}

// Stripe is the dashboard's "Payments" export. Transactions are keyed by
// PaymentIntent, which is what the ledger stores once a session completes.
var Stripe = Profile{
	Name:        "stripe-payments",
	Comma:       ',',
	TxCol:       "PaymentIntent ID",
	AmountCol:   "Amount",
	CurrencyCol: "Currency",
	StatusCol:   "Status",
	DateCol:     "Created date (UTC)",
	DateLayout:  "2006-01-02 15:04:05",
	Numbers:     numberDot,
	Statuses: map[string]payment.Status{
		"paid":       payment.StatusCompleted,
		"succeeded":  payment.StatusCompleted,
		"refunded":   payment.StatusRefunded,
		"failed":     payment.StatusFailed,
		"incomplete": payment.StatusPending,
	},
}

var walletStatuses = map[string]payment.Status{
	"thành công":   payment.StatusCompleted,
	"thất bại":     payment.StatusFailed,
	"đã hoàn tiền": payment.StatusRefunded,
	"hoàn tiền":    payment.StatusRefunded,
	"đang xử lý":   payment.StatusPending,
	"hết hạn":      payment.StatusFailed,
}

// MoMo is the merchant portal's transaction report. The order id column
// carries the transaction id payflow generated at checkout.
var MoMo = Profile{
	Name:       "momo-merchant",
	Comma:      ',',
	Encoding:   charmap.Windows1258,
	TxCol:      "Mã đơn hàng",
	AmountCol:  "Số tiền",
	Currency:   payment.CurrencyVND,
	StatusCol:  "Trạng thái",
	DateCol:    "Thời gian tạo",
	DateLayout: "02/01/2006 15:04:05",
	Numbers:    numberComma,
	Statuses:   walletStatuses,
}

var ZaloPay = Profile{
	Name:       "zalopay-merchant",
	Comma:      ';',
	Encoding:   charmap.Windows1258,
	TxCol:      "Mã giao dịch merchant",
	AmountCol:  "Số tiền",
	Currency:   payment.CurrencyVND,
	StatusCol:  "Trạng thái",
	DateCol:    "Ngày giao dịch",
	DateLayout: "02/01/2006 15:04",
	Numbers:    numberComma,
	Statuses:   walletStatuses,
}
