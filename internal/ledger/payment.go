package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

var (
	ErrNotFound = errors.New("payment not found")
	// ErrUncorrelated is returned when a change names neither a known
	// transaction nor an invoice.
	ErrUncorrelated = errors.New("payment cannot be correlated with an invoice")
)

// Payment is one row of the ledger, keyed by the provider's transaction id.
type Payment struct {
	ID            uuid.UUID
	TransactionID string
	InvoiceID     uuid.UUID
	Amount        decimal.Decimal
	Currency      payment.Currency
	Provider      payment.Provider
	Status        payment.Status
	Metadata      map[string]string
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

var transitions = map[payment.Status][]payment.Status{
	payment.StatusPending: {payment.StatusCompleted, payment.StatusFailed, payment.StatusRefunded},
	// The payer may retry on the hosted page after a decline.
	payment.StatusFailed:    {payment.StatusCompleted},
	payment.StatusCompleted: {payment.StatusRefunded},
}

// CanTransition reports whether a row in status from may move to to.
// Anything not listed is a stale or out-of-order delivery.
func CanTransition(from, to payment.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}

	return false
}
