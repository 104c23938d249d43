// Package checkout opens provider-hosted payment sessions for invoices.
package checkout

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

type Invoices interface {
	GetPayable(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
}

type Router interface {
	Resolve(c payment.Currency, override payment.Provider) (payment.Adapter, error)
}

type Ledger interface {
	Upsert(ctx context.Context, c ledger.Change) (*ledger.Outcome, error)
	SumCompleted(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
}

type Config struct {
	SuccessURL string
	CancelURL  string
	// Timeout bounds the provider call, independent of session expiry.
	Timeout time.Duration
}

type Request struct {
	InvoiceID  uuid.UUID
	SuccessURL string
	CancelURL  string
	Provider   payment.Provider
	PayerEmail string
	PayerName  string
}

type Session struct {
	SessionID  string
	PaymentURL string
	Provider   payment.Provider
	ExpiresAt  *time.Time
}

type Service struct {
	cfg      Config
	invoices Invoices
	router   Router
	ledger   Ledger
	logger   *slog.Logger
}

func NewService(cfg Config, invoices Invoices, router Router, ledger Ledger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Service{cfg: cfg, invoices: invoices, router: router, ledger: ledger, logger: logger}
}

func (s *Service) CreateSession(ctx context.Context, req Request) (*Session, error) {
	inv, err := s.invoices.GetPayable(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}

	due, err := s.balance(ctx, inv)
	if err != nil {
		return nil, err
	}

	adapter, err := s.router.Resolve(inv.Currency, req.Provider)
	if err != nil {
		return nil, err
	}

	provider := adapter.Descriptor().Name
	params := s.params(inv, due, req)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	sess, err := adapter.CreateCheckoutSession(callCtx, params)
	if err != nil {
		metrics.RecordCheckout(string(provider), "error")
		s.logger.Error("creating checkout session",
			"invoice_id", inv.ID,
			"provider", provider,
			"error", err,
			"detail", detail(err),
		)

		return nil, err
	}

	metadata := map[string]string{
		"session_id":  sess.ID,
		"payment_url": sess.URL,
	}
	if sess.ExpiresAt != nil {
		metadata["expires_at"] = sess.ExpiresAt.UTC().Format(time.RFC3339)
	}

	_, err = s.ledger.Upsert(ctx, ledger.Change{
		TransactionID: sess.ID,
		InvoiceID:     inv.ID,
		Amount:        due,
		Currency:      inv.Currency,
		Provider:      provider,
		Status:        payment.StatusPending,
		Metadata:      metadata,
	})
	if err != nil {
		metrics.RecordCheckout(string(provider), "error")
		return nil, fmt.Errorf("recording pending payment: %w", err)
	}

	metrics.RecordCheckout(string(provider), "created")
	s.logger.Info("checkout session created",
		"invoice_id", inv.ID,
		"provider", provider,
		"session_id", sess.ID,
	)

	return &Session{
		SessionID:  sess.ID,
		PaymentURL: sess.URL,
		Provider:   provider,
		ExpiresAt:  sess.ExpiresAt,
	}, nil
}

// balance is what is still owed on inv after its completed payments. An
// invoice already covered by partial payments cannot be charged again even
// while its status lags behind.
func (s *Service) balance(ctx context.Context, inv *invoice.Invoice) (decimal.Decimal, error) {
	paid, err := s.ledger.SumCompleted(ctx, inv.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing payments for invoice %s: %w", inv.ID, err)
	}

	due := inv.Amount.Sub(paid)
	if !due.IsPositive() {
		return decimal.Zero, invoice.ErrAlreadyPaid
	}

	return due, nil
}

// params fills payer identity from the request, falling back to the
// invoice's client fields.
func (s *Service) params(inv *invoice.Invoice, due decimal.Decimal, req Request) payment.CheckoutParams {
	p := payment.CheckoutParams{
		InvoiceID:   inv.ID,
		Amount:      due,
		Currency:    inv.Currency,
		PayerEmail:  inv.ClientEmail,
		PayerName:   inv.ClientName,
		Description: inv.Description,
		SuccessURL:  s.cfg.SuccessURL,
		CancelURL:   s.cfg.CancelURL,
	}

	if req.PayerEmail != "" {
		p.PayerEmail = req.PayerEmail
	}

	if req.PayerName != "" {
		p.PayerName = req.PayerName
	}

	if req.SuccessURL != "" {
		p.SuccessURL = req.SuccessURL
	}

	if req.CancelURL != "" {
		p.CancelURL = req.CancelURL
	}

	return p
}

func detail(err error) string {
	var apiErr *payment.ProviderAPIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail()
	}

	return ""
}
