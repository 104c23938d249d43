package invoice

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

var (
	ErrNotFound    = errors.New("invoice not found")
	ErrAlreadyPaid = errors.New("invoice already paid")
	ErrNotPayable  = errors.New("invoice is not payable")
)

// Status represents the lifecycle state of an invoice.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Invoice is owned by billing; the payment core only flips status and paid_at.
type Invoice struct {
	ID          uuid.UUID
	Amount      decimal.Decimal
	Currency    payment.Currency
	Status      Status
	DueDate     *time.Time
	PaidAt      *time.Time
	ClientName  string
	ClientEmail string
	Description string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// CheckPayable reports why money cannot be collected against the invoice.
func (i *Invoice) CheckPayable() error {
	switch i.Status {
	case StatusPaid:
		return ErrAlreadyPaid
	case StatusCancelled:
		return ErrNotPayable
	}

	return nil
}
