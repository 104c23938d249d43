// Package admin exposes operator actions on recorded payments: live status
// lookups and refunds.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/notify"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
	"github.com/MrJamesThe3rd/payflow/internal/reconcile"
)

var (
	ErrNotRefundable = errors.New("payment is not refundable")
	ErrInvalidAmount = errors.New("refund amount must be positive and not exceed the payment")
)

type Payments interface {
	Get(ctx context.Context, transactionID string) (*ledger.Payment, error)
}

type Providers interface {
	GetProvider(name payment.Provider) (payment.Adapter, error)
}

type Reconciler interface {
	Apply(ctx context.Context, c ledger.Change, opts reconcile.Options) (*reconcile.Applied, error)
}

type Notifier interface {
	Enqueue(e notify.Event) bool
}

type StatusResult struct {
	TransactionID string
	Provider      payment.Provider
	Status        payment.Status
}

type RefundResult struct {
	Success  bool
	RefundID string
	Amount   decimal.Decimal
	// Reopened is set when the refund moved a paid invoice back to sent.
	Reopened bool
}

type Service struct {
	payments   Payments
	providers  Providers
	reconciler Reconciler
	notifier   Notifier
	timeout    time.Duration
	logger     *slog.Logger
}

func NewService(payments Payments, providers Providers, reconciler Reconciler, notifier Notifier, timeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Service{
		payments:   payments,
		providers:  providers,
		reconciler: reconciler,
		notifier:   notifier,
		timeout:    timeout,
		logger:     logger,
	}
}

// Status asks the provider for the live state of a transaction. Without an
// explicit provider the ledger row decides which adapter to ask.
func (s *Service) Status(ctx context.Context, transactionID string, provider payment.Provider) (*StatusResult, error) {
	if provider == "" {
		p, err := s.payments.Get(ctx, transactionID)
		if err != nil {
			return nil, err
		}

		provider = p.Provider
	}

	adapter, err := s.providers.GetProvider(provider)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status, err := adapter.GetPaymentStatus(callCtx, transactionID)
	if err != nil {
		return nil, err
	}

	return &StatusResult{TransactionID: transactionID, Provider: provider, Status: status}, nil
}

// Refund returns money for a completed payment. A nil amount refunds in
// full. Only a full refund moves the payment to refunded, and may reopen
// the invoice; partial refunds are kept in the row's metadata.
func (s *Service) Refund(ctx context.Context, transactionID string, amount *decimal.Decimal) (*RefundResult, error) {
	p, err := s.payments.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	adapter, err := s.providers.GetProvider(p.Provider)
	if err != nil {
		return nil, err
	}

	if !adapter.Descriptor().SupportsRefund {
		return nil, &payment.UnsupportedOperationError{Provider: p.Provider, Op: "refund"}
	}

	if p.Status != payment.StatusCompleted {
		return nil, fmt.Errorf("%w: payment is %s", ErrNotRefundable, p.Status)
	}

	already := refundedSoFar(p)
	if amount != nil && (!amount.IsPositive() || amount.GreaterThan(p.Amount.Sub(already))) {
		return nil, ErrInvalidAmount
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	refund, err := adapter.RefundPayment(callCtx, transactionID, amount)
	if err != nil {
		s.logger.Error("refund failed", "transaction_id", transactionID, "provider", p.Provider, "error", err)
		return nil, err
	}

	total := already.Add(refund.Amount)
	full := amount == nil || !total.LessThan(p.Amount)

	// refunded_amount is cumulative, matching what the provider's refund
	// webhook reports; last_refund_amount is this call alone.
	change := ledger.Change{
		TransactionID: p.TransactionID,
		InvoiceID:     p.InvoiceID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Provider:      p.Provider,
		Status:        payment.StatusCompleted,
		Metadata: map[string]string{
			"refund_id":          refund.ID,
			"refunded_amount":    total.String(),
			"last_refund_amount": refund.Amount.String(),
		},
	}

	if full {
		change.Status = payment.StatusRefunded
	}

	// The provider already moved the money; a ledger failure here needs an
	// operator, the refund webhook will also try to record it.
	applied, err := s.reconciler.Apply(ctx, change, reconcile.Options{ReopenOnShortfall: true})
	if err != nil {
		s.logger.Error("refund succeeded at provider but ledger update failed",
			"transaction_id", transactionID, "refund_id", refund.ID, "error", err)

		return nil, fmt.Errorf("recording refund %s: %w", refund.ID, err)
	}

	s.logger.Info("payment refunded",
		"transaction_id", transactionID,
		"provider", p.Provider,
		"refund_id", refund.ID,
		"amount", refund.Amount,
		"full", full,
	)

	s.notifier.Enqueue(notify.Event{
		Kind:          notify.KindPaymentRefunded,
		Audience:      notify.AudienceAdmin,
		InvoiceID:     p.InvoiceID,
		TransactionID: p.TransactionID,
		Provider:      p.Provider,
		Amount:        refund.Amount,
		Currency:      p.Currency,
	})

	return &RefundResult{
		Success:  true,
		RefundID: refund.ID,
		Amount:   refund.Amount,
		Reopened: applied.Reopened,
	}, nil
}

func refundedSoFar(p *ledger.Payment) decimal.Decimal {
	v, err := decimal.NewFromString(p.Metadata["refunded_amount"])
	if err != nil {
		return decimal.Zero
	}

	return v
}
