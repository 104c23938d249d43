package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=ledger
type Repository interface {
	GetPayment(ctx context.Context, transactionID string) (*Payment, error)
	// LockPayment reads the row and holds a lock on it until the surrounding
	// transaction ends. Returns ErrNotFound when absent.
	LockPayment(ctx context.Context, transactionID string) (*Payment, error)
	// InsertPayment reports false when a row with the same transaction id
	// already exists.
	InsertPayment(ctx context.Context, p *Payment) (bool, error)
	UpdatePayment(ctx context.Context, p *Payment) error
	RekeyPayment(ctx context.Context, from, to string) error
	DeletePayment(ctx context.Context, transactionID string) error

	SumCompleted(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
	ListRecent(ctx context.Context, limit int) ([]*Payment, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Change is what a webhook or checkout wants the ledger to reflect.
type Change struct {
	TransactionID string
	// SessionID names a provisional row created at checkout, when the
	// provider later reports under a different transaction id.
	SessionID string
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
	Currency  payment.Currency
	Provider  payment.Provider
	Status    payment.Status
	Metadata  map[string]string
}

type Outcome struct {
	Payment      *Payment
	Created      bool
	Transitioned bool
	// FirstCompleted is set only on the call that moved the row into completed.
	FirstCompleted bool
	Previous       payment.Status
}

func (s *Service) Get(ctx context.Context, transactionID string) (*Payment, error) {
	return s.repo.GetPayment(ctx, transactionID)
}

func (s *Service) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	return s.repo.ListByInvoice(ctx, invoiceID)
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]*Payment, error) {
	return s.repo.ListRecent(ctx, limit)
}

func (s *Service) SumCompleted(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	return s.repo.SumCompleted(ctx, invoiceID)
}

// Upsert makes the ledger reflect c. It is safe to call repeatedly with the
// same change: only the first call that moves a row changes anything.
// Callers wanting atomicity with other writes run it on a transaction-bound
// Repository.
func (s *Service) Upsert(ctx context.Context, c Change) (*Outcome, error) {
	if c.TransactionID == "" {
		return nil, errors.New("transaction id is required")
	}

	if err := c.Status.Valid(); err != nil {
		return nil, err
	}

	p, err := s.lockOrRekey(ctx, &c)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if p != nil {
		return s.apply(ctx, p, c)
	}

	if c.InvoiceID == uuid.Nil {
		return nil, ErrUncorrelated
	}

	p = &Payment{
		TransactionID: c.TransactionID,
		InvoiceID:     c.InvoiceID,
		Amount:        c.Amount,
		Currency:      c.Currency,
		Provider:      c.Provider,
		Status:        c.Status,
		Metadata:      mergeMetadata(nil, c.Metadata),
	}

	inserted, err := s.repo.InsertPayment(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("inserting payment: %w", err)
	}

	if inserted {
		return &Outcome{
			Payment:        p,
			Created:        true,
			Transitioned:   true,
			FirstCompleted: p.Status == payment.StatusCompleted,
		}, nil
	}

	// Lost the insert race; the winner's row is now visible.
	p, err = s.repo.LockPayment(ctx, c.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("locking payment after conflict: %w", err)
	}

	return s.apply(ctx, p, c)
}

func (s *Service) lockOrRekey(ctx context.Context, c *Change) (*Payment, error) {
	p, err := s.repo.LockPayment(ctx, c.TransactionID)
	if err == nil {
		if err := s.foldProvisional(ctx, p, c); err != nil {
			return nil, err
		}

		return p, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("locking payment: %w", err)
	}

	if c.SessionID == "" || c.SessionID == c.TransactionID {
		return nil, ErrNotFound
	}

	p, err = s.repo.LockPayment(ctx, c.SessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("locking provisional payment: %w", err)
	}

	if err := s.repo.RekeyPayment(ctx, c.SessionID, c.TransactionID); err != nil {
		return nil, fmt.Errorf("rekeying payment: %w", err)
	}

	p.TransactionID = c.TransactionID

	return p, nil
}

// foldProvisional removes the checkout row named by c.SessionID when the
// provider's transaction id already has its own row, which happens when a
// refund is delivered before the completion. Keys only the provisional row
// carried are moved onto c so apply persists them.
func (s *Service) foldProvisional(ctx context.Context, p *Payment, c *Change) error {
	if c.SessionID == "" || c.SessionID == c.TransactionID {
		return nil
	}

	provisional, err := s.repo.LockPayment(ctx, c.SessionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("locking provisional payment: %w", err)
	}

	if provisional.InvoiceID != p.InvoiceID {
		return fmt.Errorf("provisional payment %s belongs to invoice %s, not %s",
			c.SessionID, provisional.InvoiceID, p.InvoiceID)
	}

	carried := make(map[string]string)

	for k, v := range provisional.Metadata {
		if _, ok := p.Metadata[k]; !ok {
			carried[k] = v
		}
	}

	c.Metadata = mergeMetadata(carried, c.Metadata)

	if err := s.repo.DeletePayment(ctx, c.SessionID); err != nil {
		return fmt.Errorf("deleting provisional payment: %w", err)
	}

	return nil
}

func (s *Service) apply(ctx context.Context, p *Payment, c Change) (*Outcome, error) {
	out := &Outcome{Payment: p, Previous: p.Status}

	if CanTransition(p.Status, c.Status) {
		p.Status = c.Status
		out.Transitioned = true
		out.FirstCompleted = c.Status == payment.StatusCompleted
	}

	merged := mergeMetadata(p.Metadata, c.Metadata)
	metadataChanged := false

	for k, v := range merged {
		if old, ok := p.Metadata[k]; !ok || old != v {
			metadataChanged = true
		}
	}

	p.Metadata = merged

	if !out.Transitioned && !metadataChanged {
		return out, nil
	}

	if err := s.repo.UpdatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("updating payment: %w", err)
	}

	return out, nil
}

func mergeMetadata(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}

	for k, v := range extra {
		if v != "" {
			out[k] = v
		}
	}

	return out
}
