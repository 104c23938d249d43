package statement

import (
	"errors"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

var (
	ErrNoParser = errors.New("no statement format registered for provider")
	// ErrUnreadable wraps failures to parse an uploaded export.
	ErrUnreadable = errors.New("unreadable statement")
)

// Line is one transaction as the provider reports it in a settlement export.
type Line struct {
	// Row is the 1-based row in the source file.
	Row           int
	TransactionID string
	Amount        decimal.Decimal
	Currency      payment.Currency
	Status        payment.Status
	Date          time.Time
}

type Parser interface {
	Parse(r io.Reader) ([]Line, error)
}

type Kind string

const (
	KindMissing          Kind = "missing_in_ledger"
	KindDuplicate        Kind = "duplicate_line"
	KindProviderMismatch Kind = "provider_mismatch"
	KindCurrencyMismatch Kind = "currency_mismatch"
	KindAmountMismatch   Kind = "amount_mismatch"
	KindStatusMismatch   Kind = "status_mismatch"
)

// Finding is one disagreement between the statement and the ledger.
// Payment is nil for KindMissing and KindDuplicate.
type Finding struct {
	Kind    Kind
	Line    Line
	Payment *ledger.Payment
}

type Report struct {
	Provider payment.Provider
	Lines    int
	Matched  int
	Findings []Finding
}

// Clean reports whether every line agreed with the ledger.
func (r *Report) Clean() bool {
	return len(r.Findings) == 0
}
