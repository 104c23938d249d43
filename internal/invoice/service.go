package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=invoice
type Repository interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]*Invoice, error)

	// LockInvoice reads the invoice and holds a row lock until the
	// surrounding transaction ends.
	LockInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error
	Reopen(ctx context.Context, id uuid.UUID) error
}

type ListFilter struct {
	Status *Status
	Limit  int
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Invoice, error) {
	return s.repo.ListInvoices(ctx, filter)
}

// GetPayable loads the invoice and fails with ErrAlreadyPaid or ErrNotPayable
// when no money may be collected against it.
func (s *Service) GetPayable(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := inv.CheckPayable(); err != nil {
		return nil, err
	}

	return inv, nil
}
