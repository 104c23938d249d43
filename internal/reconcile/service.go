// Package reconcile applies ledger changes and settles invoices inside one
// database transaction.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/invoice"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/metrics"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

// Runner executes fn with repositories bound to a single transaction.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, payments ledger.Repository, invoices invoice.Repository) error) error
}

type Options struct {
	// ReopenOnShortfall moves a paid invoice back to sent when a refund
	// leaves its completed total below the invoice amount. Only the explicit
	// refund operation sets it.
	ReopenOnShortfall bool
}

type Applied struct {
	Outcome *ledger.Outcome
	// Invoice is the state after this call, nil when it was not touched.
	Invoice        *invoice.Invoice
	CompletedTotal decimal.Decimal
	// InvoicePaid is set only on the call that moved the invoice to paid.
	InvoicePaid bool
	Overpaid    bool
	Reopened    bool
}

type Service struct {
	runner Runner
	logger *slog.Logger
	now    func() time.Time
}

func NewService(runner Runner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{runner: runner, logger: logger, now: time.Now}
}

// Apply upserts c into the ledger and, when that moved a payment into
// completed for the first time, settles the invoice in the same transaction.
func (s *Service) Apply(ctx context.Context, c ledger.Change, opts Options) (*Applied, error) {
	var applied *Applied

	err := s.runner.InTx(ctx, func(ctx context.Context, payments ledger.Repository, invoices invoice.Repository) error {
		if err := checkInvoice(ctx, invoices, c.InvoiceID); err != nil {
			return err
		}

		out, err := ledger.NewService(payments).Upsert(ctx, c)
		if err != nil {
			return err
		}

		applied = &Applied{Outcome: out}

		switch {
		case out.FirstCompleted:
			return s.settle(ctx, payments, invoices, out.Payment, applied)
		case opts.ReopenOnShortfall && out.Payment.Status == payment.StatusRefunded:
			// The provider's own refund webhook may have landed first, so the
			// row can already be refunded without this call transitioning it.
			return s.reopen(ctx, payments, invoices, out.Payment.InvoiceID, applied)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.report(applied)

	return applied, nil
}

// checkInvoice turns a reference to an invoice we never issued into
// ledger.ErrUncorrelated so the event is parked instead of retried.
func checkInvoice(ctx context.Context, invoices invoice.Repository, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}

	_, err := invoices.GetInvoice(ctx, id)
	if errors.Is(err, invoice.ErrNotFound) {
		return fmt.Errorf("%w: invoice %s does not exist", ledger.ErrUncorrelated, id)
	}

	if err != nil {
		return fmt.Errorf("loading invoice %s: %w", id, err)
	}

	return nil
}

// Settle re-runs settlement for an invoice without a ledger change. Used by
// operators after manual corrections.
func (s *Service) Settle(ctx context.Context, invoiceID uuid.UUID) (*Applied, error) {
	applied := &Applied{}

	err := s.runner.InTx(ctx, func(ctx context.Context, payments ledger.Repository, invoices invoice.Repository) error {
		return s.settle(ctx, payments, invoices, &ledger.Payment{InvoiceID: invoiceID}, applied)
	})
	if err != nil {
		return nil, err
	}

	s.report(applied)

	return applied, nil
}

func (s *Service) settle(ctx context.Context, payments ledger.Repository, invoices invoice.Repository, p *ledger.Payment, applied *Applied) error {
	inv, err := invoices.LockInvoice(ctx, p.InvoiceID)
	if err != nil {
		return fmt.Errorf("locking invoice %s: %w", p.InvoiceID, err)
	}

	applied.Invoice = inv

	if p.Currency != "" && p.Currency != inv.Currency {
		s.logger.Warn("payment currency differs from invoice currency, not settling",
			"invoice_id", inv.ID, "transaction_id", p.TransactionID,
			"payment_currency", p.Currency, "invoice_currency", inv.Currency)

		return nil
	}

	total, err := payments.SumCompleted(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("summing payments for invoice %s: %w", inv.ID, err)
	}

	applied.CompletedTotal = total

	if total.LessThan(inv.Amount) {
		return nil
	}

	applied.Overpaid = total.GreaterThan(inv.Amount)

	switch inv.Status {
	case invoice.StatusPaid:
		return nil
	case invoice.StatusCancelled:
		s.logger.Warn("completed payments cover a cancelled invoice, leaving it cancelled",
			"invoice_id", inv.ID, "completed_total", total)

		return nil
	}

	paidAt := s.now().UTC()
	if err := invoices.MarkPaid(ctx, inv.ID, paidAt); err != nil {
		return fmt.Errorf("marking invoice %s paid: %w", inv.ID, err)
	}

	inv.Status = invoice.StatusPaid
	inv.PaidAt = &paidAt
	applied.InvoicePaid = true

	return nil
}

func (s *Service) reopen(ctx context.Context, payments ledger.Repository, invoices invoice.Repository, invoiceID uuid.UUID, applied *Applied) error {
	inv, err := invoices.LockInvoice(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("locking invoice %s: %w", invoiceID, err)
	}

	applied.Invoice = inv

	total, err := payments.SumCompleted(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("summing payments for invoice %s: %w", inv.ID, err)
	}

	applied.CompletedTotal = total

	if inv.Status != invoice.StatusPaid || !total.LessThan(inv.Amount) {
		return nil
	}

	if err := invoices.Reopen(ctx, inv.ID); err != nil {
		return fmt.Errorf("reopening invoice %s: %w", inv.ID, err)
	}

	inv.Status = invoice.StatusSent
	inv.PaidAt = nil
	applied.Reopened = true

	return nil
}

func (s *Service) report(a *Applied) {
	if a.Invoice == nil {
		return
	}

	if a.Overpaid {
		metrics.RecordOverpayment()
		s.logger.Warn("invoice overpaid",
			"invoice_id", a.Invoice.ID,
			"invoice_amount", a.Invoice.Amount,
			"completed_total", a.CompletedTotal,
			"excess", a.CompletedTotal.Sub(a.Invoice.Amount))
	}

	if a.InvoicePaid {
		metrics.RecordInvoicePaid()
		s.logger.Info("invoice paid", "invoice_id", a.Invoice.ID, "completed_total", a.CompletedTotal)
	}

	if a.Reopened {
		s.logger.Info("invoice reopened after refund", "invoice_id", a.Invoice.ID, "completed_total", a.CompletedTotal)
	}
}
