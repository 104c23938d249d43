package admin_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/payflow/internal/admin"
	"github.com/MrJamesThe3rd/payflow/internal/invoice"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/ledger/ledgertest"
	"github.com/MrJamesThe3rd/payflow/internal/notify"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
	"github.com/MrJamesThe3rd/payflow/internal/reconcile"
)

type queue []notify.Event

func (q *queue) Enqueue(e notify.Event) bool {
	*q = append(*q, e)
	return true
}

type fixture struct {
	svc    *admin.Service
	mem    *ledgertest.Memory
	rec    *reconcile.Service
	stripe *payment.MockAdapter
	momo   *payment.MockAdapter
	queue  *queue
}

func mockAdapter(ctrl *gomock.Controller, d payment.Descriptor) *payment.MockAdapter {
	m := payment.NewMockAdapter(ctrl)
	m.EXPECT().Descriptor().Return(d).AnyTimes()
	m.EXPECT().SupportsCurrency(gomock.Any()).DoAndReturn(d.SupportsCurrency).AnyTimes()

	return m
}

func setup(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)

	f := &fixture{
		mem:   ledgertest.New(),
		queue: &queue{},
		stripe: mockAdapter(ctrl, payment.Descriptor{
			Name:           payment.ProviderStripe,
			Currencies:     []payment.Currency{payment.CurrencyUSD, payment.CurrencyEUR},
			SupportsRefund: true,
		}),
		momo: mockAdapter(ctrl, payment.Descriptor{
			Name:       payment.ProviderMoMo,
			Currencies: []payment.Currency{payment.CurrencyVND},
		}),
	}

	router, err := payment.NewRouter(payment.RouterConfig{RegionalProvider: payment.ProviderMoMo}, f.stripe, f.momo)
	require.NoError(t, err)

	f.rec = reconcile.NewService(f.mem, nil)
	f.svc = admin.NewService(ledger.NewService(f.mem), router, f.rec, f.queue, 0, nil)

	return f
}

// paid creates an invoice settled by a single completed payment.
func (f *fixture) paid(t *testing.T, txID string, amount int64, provider payment.Provider, c payment.Currency) uuid.UUID {
	t.Helper()

	id := f.mem.AddInvoice(invoice.Invoice{
		Amount:   decimal.NewFromInt(amount),
		Currency: c,
		Status:   invoice.StatusSent,
	})

	applied, err := f.rec.Apply(context.Background(), ledger.Change{
		TransactionID: txID,
		InvoiceID:     id,
		Amount:        decimal.NewFromInt(amount),
		Currency:      c,
		Provider:      provider,
		Status:        payment.StatusCompleted,
	}, reconcile.Options{})
	require.NoError(t, err)
	require.True(t, applied.InvoicePaid)

	return id
}

func TestService_Refund_FullReopensInvoice(t *testing.T) {
	f := setup(t)
	id := f.paid(t, "pi_1", 100, payment.ProviderStripe, payment.CurrencyUSD)

	f.stripe.EXPECT().RefundPayment(gomock.Any(), "pi_1", (*decimal.Decimal)(nil)).
		Return(&payment.Refund{ID: "re_1", Amount: decimal.NewFromInt(100)}, nil)

	res, err := f.svc.Refund(context.Background(), "pi_1", nil)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "re_1", res.RefundID)
	assert.True(t, decimal.NewFromInt(100).Equal(res.Amount))
	assert.True(t, res.Reopened)

	rows := f.mem.Payments(id)
	require.Len(t, rows, 1)
	assert.Equal(t, payment.StatusRefunded, rows[0].Status)
	assert.Equal(t, "re_1", rows[0].Metadata["refund_id"])

	inv := f.mem.Invoice(id)
	assert.Equal(t, invoice.StatusSent, inv.Status)
	assert.Nil(t, inv.PaidAt)

	require.Len(t, *f.queue, 1)
	assert.Equal(t, notify.KindPaymentRefunded, (*f.queue)[0].Kind)
}

func TestService_Refund_PartialKeepsPayment(t *testing.T) {
	f := setup(t)
	id := f.paid(t, "pi_1", 100, payment.ProviderStripe, payment.CurrencyUSD)
	amount := decimal.RequireFromString("25.50")

	f.stripe.EXPECT().RefundPayment(gomock.Any(), "pi_1", &amount).
		Return(&payment.Refund{ID: "re_2", Amount: amount}, nil)

	res, err := f.svc.Refund(context.Background(), "pi_1", &amount)
	require.NoError(t, err)
	assert.False(t, res.Reopened)

	rows := f.mem.Payments(id)
	require.Len(t, rows, 1)
	assert.Equal(t, payment.StatusCompleted, rows[0].Status)
	assert.Equal(t, "25.5", rows[0].Metadata["refunded_amount"])
	assert.Equal(t, "25.5", rows[0].Metadata["last_refund_amount"])
	assert.Equal(t, invoice.StatusPaid, f.mem.Invoice(id).Status)
}

func TestService_Refund_PartialRefundsAccumulate(t *testing.T) {
	f := setup(t)
	id := f.paid(t, "pi_1", 100, payment.ProviderStripe, payment.CurrencyUSD)
	ctx := context.Background()

	first := decimal.NewFromInt(30)
	second := decimal.NewFromInt(45)
	rest := decimal.NewFromInt(25)

	gomock.InOrder(
		f.stripe.EXPECT().RefundPayment(gomock.Any(), "pi_1", &first).
			Return(&payment.Refund{ID: "re_1", Amount: first}, nil),
		f.stripe.EXPECT().RefundPayment(gomock.Any(), "pi_1", &second).
			Return(&payment.Refund{ID: "re_2", Amount: second}, nil),
		f.stripe.EXPECT().RefundPayment(gomock.Any(), "pi_1", &rest).
			Return(&payment.Refund{ID: "re_3", Amount: rest}, nil),
	)

	_, err := f.svc.Refund(ctx, "pi_1", &first)
	require.NoError(t, err)

	_, err = f.svc.Refund(ctx, "pi_1", &second)
	require.NoError(t, err)

	rows := f.mem.Payments(id)
	require.Len(t, rows, 1)
	assert.Equal(t, payment.StatusCompleted, rows[0].Status)
	assert.Equal(t, "75", rows[0].Metadata["refunded_amount"])
	assert.Equal(t, "45", rows[0].Metadata["last_refund_amount"])

	// Only 25 is left to refund.
	_, err = f.svc.Refund(ctx, "pi_1", new(decimal.NewFromInt(26)))
	assert.ErrorIs(t, err, admin.ErrInvalidAmount)

	res, err := f.svc.Refund(ctx, "pi_1", &rest)
	require.NoError(t, err)
	assert.True(t, res.Reopened)

	rows = f.mem.Payments(id)
	require.Len(t, rows, 1)
	assert.Equal(t, payment.StatusRefunded, rows[0].Status)
	assert.Equal(t, "100", rows[0].Metadata["refunded_amount"])
	assert.Equal(t, invoice.StatusSent, f.mem.Invoice(id).Status)
}

func TestService_Refund_Rejected(t *testing.T) {
	type testCase struct {
		name    string
		txID    string
		amount  *decimal.Decimal
		prepare func(t *testing.T, f *fixture)
		wantErr error
		wantAs  any
	}

	tests := []testCase{
		{
			name:    "NotFound",
			txID:    "pi_missing",
			wantErr: ledger.ErrNotFound,
		},
		{
			name: "ProviderWithoutRefunds",
			txID: "momo_tx",
			prepare: func(t *testing.T, f *fixture) {
				f.paid(t, "momo_tx", 250000, payment.ProviderMoMo, payment.CurrencyVND)
			},
			wantAs: new(*payment.UnsupportedOperationError),
		},
		{
			name: "NotCompleted",
			txID: "pi_pending",
			prepare: func(t *testing.T, f *fixture) {
				id := f.mem.AddInvoice(invoice.Invoice{Amount: decimal.NewFromInt(10), Currency: payment.CurrencyUSD, Status: invoice.StatusSent})
				_, err := ledger.NewService(f.mem).Upsert(context.Background(), ledger.Change{
					TransactionID: "pi_pending",
					InvoiceID:     id,
					Amount:        decimal.NewFromInt(10),
					Currency:      payment.CurrencyUSD,
					Provider:      payment.ProviderStripe,
					Status:        payment.StatusPending,
				})
				require.NoError(t, err)
			},
			wantErr: admin.ErrNotRefundable,
		},
		{
			name:   "ZeroAmount",
			txID:   "pi_1",
			amount: new(decimal.Zero),
			prepare: func(t *testing.T, f *fixture) {
				f.paid(t, "pi_1", 100, payment.ProviderStripe, payment.CurrencyUSD)
			},
			wantErr: admin.ErrInvalidAmount,
		},
		{
			name:   "MoreThanPaid",
			txID:   "pi_1",
			amount: new(decimal.NewFromInt(101)),
			prepare: func(t *testing.T, f *fixture) {
				f.paid(t, "pi_1", 100, payment.ProviderStripe, payment.CurrencyUSD)
			},
			wantErr: admin.ErrInvalidAmount,
		},
		{
			name: "ProviderFails",
			txID: "pi_1",
			prepare: func(t *testing.T, f *fixture) {
				f.paid(t, "pi_1", 100, payment.ProviderStripe, payment.CurrencyUSD)
				f.stripe.EXPECT().RefundPayment(gomock.Any(), "pi_1", gomock.Any()).
					Return(nil, &payment.ProviderAPIError{Provider: payment.ProviderStripe, Op: "refund", StatusCode: 402})
			},
			wantAs: new(*payment.ProviderAPIError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			if tt.prepare != nil {
				tt.prepare(t, f)
			}

			res, err := f.svc.Refund(context.Background(), tt.txID, tt.amount)
			require.Error(t, err)
			assert.Nil(t, res)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			if tt.wantAs != nil {
				assert.ErrorAs(t, err, tt.wantAs)
			}

			assert.Empty(t, *f.queue)

			if p, err := ledger.NewService(f.mem).Get(context.Background(), tt.txID); err == nil {
				assert.NotEqual(t, payment.StatusRefunded, p.Status)
			}
		})
	}
}

func TestService_Status(t *testing.T) {
	t.Run("ProviderFromLedger", func(t *testing.T) {
		f := setup(t)
		f.paid(t, "pi_1", 100, payment.ProviderStripe, payment.CurrencyUSD)

		f.stripe.EXPECT().GetPaymentStatus(gomock.Any(), "pi_1").Return(payment.StatusCompleted, nil)

		res, err := f.svc.Status(context.Background(), "pi_1", "")
		require.NoError(t, err)
		assert.Equal(t, payment.ProviderStripe, res.Provider)
		assert.Equal(t, payment.StatusCompleted, res.Status)
	})

	t.Run("ExplicitProvider", func(t *testing.T) {
		f := setup(t)

		f.momo.EXPECT().GetPaymentStatus(gomock.Any(), "momo_x").Return(payment.StatusPending, nil)

		res, err := f.svc.Status(context.Background(), "momo_x", payment.ProviderMoMo)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusPending, res.Status)
	})

	t.Run("UnknownTransaction", func(t *testing.T) {
		f := setup(t)

		_, err := f.svc.Status(context.Background(), "pi_nope", "")
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("UpstreamError", func(t *testing.T) {
		f := setup(t)

		f.stripe.EXPECT().GetPaymentStatus(gomock.Any(), "pi_1").
			Return(payment.Status(""), &payment.ProviderAPIError{Provider: payment.ProviderStripe, StatusCode: 500})

		_, err := f.svc.Status(context.Background(), "pi_1", payment.ProviderStripe)

		var apiErr *payment.ProviderAPIError
		assert.ErrorAs(t, err, &apiErr)
	})
}
