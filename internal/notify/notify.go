// Package notify delivers payment and invoice notifications off the request
// path.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

type Kind string

const (
	KindPaymentCompleted Kind = "payment_completed"
	KindPaymentFailed    Kind = "payment_failed"
	KindPaymentRefunded  Kind = "payment_refunded"
	KindInvoicePaid      Kind = "invoice_paid"
	KindOverpayment      Kind = "overpayment"
)

type Audience string

const (
	AudienceAdmin  Audience = "admin"
	AudienceClient Audience = "client"
)

type Event struct {
	Kind          Kind             `json:"kind"`
	Audience      Audience         `json:"audience"`
	InvoiceID     uuid.UUID        `json:"invoice_id"`
	TransactionID string           `json:"transaction_id,omitempty"`
	Provider      payment.Provider `json:"provider,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	Currency      payment.Currency `json:"currency"`
	// Recipient is an email address for client notifications.
	Recipient  string    `json:"recipient,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Summary renders a one-line human readable description.
func (e Event) Summary() string {
	amount := FormatAmount(e.Amount, e.Currency)

	switch e.Kind {
	case KindPaymentCompleted:
		return fmt.Sprintf("Payment of %s received for invoice %s", amount, e.InvoiceID)
	case KindPaymentFailed:
		if e.Reason != "" {
			return fmt.Sprintf("Payment of %s for invoice %s failed: %s", amount, e.InvoiceID, e.Reason)
		}

		return fmt.Sprintf("Payment of %s for invoice %s failed", amount, e.InvoiceID)
	case KindPaymentRefunded:
		return fmt.Sprintf("Payment of %s for invoice %s was refunded", amount, e.InvoiceID)
	case KindInvoicePaid:
		return fmt.Sprintf("Invoice %s is paid in full (%s)", e.InvoiceID, amount)
	case KindOverpayment:
		return fmt.Sprintf("Invoice %s overpaid by %s", e.InvoiceID, amount)
	}

	return fmt.Sprintf("%s for invoice %s", e.Kind, e.InvoiceID)
}

// Notifier delivers one event over one channel.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event) error

func (f NotifierFunc) Notify(ctx context.Context, e Event) error { return f(ctx, e) }

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error

	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
