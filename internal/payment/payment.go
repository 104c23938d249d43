package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code accepted for invoicing.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyVND Currency = "VND"
)

// Currencies lists every currency an invoice may be denominated in.
var Currencies = []Currency{CurrencyUSD, CurrencyEUR, CurrencyVND}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Currencies {
		if c == known {
			return c, nil
		}
	}

	return "", &UnsupportedCurrencyError{Currency: c}
}

// Provider identifies an external payment network.
type Provider string

const (
	ProviderStripe  Provider = "stripe"
	ProviderMoMo    Provider = "momo"
	ProviderZaloPay Provider = "zalopay"
)

// Status is the ledger state of a payment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Descriptor advertises what an adapter can do. Callers check it before
// invoking optional operations.
type Descriptor struct {
	Name                 Provider
	Currencies           []Currency
	SupportsSubscription bool
	SupportsRefund       bool
}

// CheckoutParams are provider-neutral. Amount is always in major units.
type CheckoutParams struct {
	InvoiceID   uuid.UUID
	Amount      decimal.Decimal
	Currency    Currency
	PayerEmail  string
	PayerName   string
	Description string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CheckoutSession is a provider-hosted payment flow the payer is redirected to.
type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt *time.Time
}

// WebhookEvent is an authenticated, not yet interpreted, provider notification.
type WebhookEvent struct {
	ID        string
	Type      string
	Payload   json.RawMessage
	Timestamp time.Time
	// TestMode is set when the event was accepted without a signature check.
	TestMode bool
}

// Result is the provider-neutral interpretation of a webhook event.
// A declined payment is a Result with Success=false, never an error.
type Result struct {
	Success       bool
	TransactionID string
	// SessionID correlates the event with the provisional row created at checkout.
	SessionID string
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	Currency  Currency
	Status    Status
	Metadata  map[string]string
	Reason    string
}

type Refund struct {
	ID     string
	Amount decimal.Decimal
}

//go:generate mockgen -source=payment.go -destination=adapter_mock.go -package=payment

// Adapter hides one payment network's wire protocol. Implementations must be
// safe for concurrent use.
type Adapter interface {
	Descriptor() Descriptor
	SupportsCurrency(c Currency) bool
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	VerifyWebhookSignature(ctx context.Context, rawBody []byte, signature string) (*WebhookEvent, error)
	ProcessWebhookEvent(ctx context.Context, event *WebhookEvent) (*Result, error)
	GetPaymentStatus(ctx context.Context, transactionID string) (Status, error)
	RefundPayment(ctx context.Context, transactionID string, amount *decimal.Decimal) (*Refund, error)
}

// SignatureHeader is implemented by adapters whose webhook signature travels
// in a provider-specific HTTP header.
type SignatureHeader interface {
	SignatureHeader() string
}

func supports(list []Currency, c Currency) bool {
	for _, s := range list {
		if s == c {
			return true
		}
	}

	return false
}

// SupportsCurrency reports whether the descriptor lists c.
func (d Descriptor) SupportsCurrency(c Currency) bool {
	return supports(d.Currencies, c)
}

func (p Provider) String() string { return string(p) }

func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderStripe, ProviderMoMo, ProviderZaloPay:
		return p, nil
	}

	return "", &UnknownProviderError{Name: s}
}

// IsRegional reports whether p belongs to the regional-wallet family.
func (p Provider) IsRegional() bool {
	return p == ProviderMoMo || p == ProviderZaloPay
}

func (s Status) Valid() error {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusRefunded:
		return nil
	}

	return fmt.Errorf("unknown payment status %q", string(s))
}
