package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/payflow/internal/database"
	"github.com/MrJamesThe3rd/payflow/internal/invoice"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

type Store struct {
	db database.DBTX
}

func New(db database.DBTX) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Expected column order: id, amount, currency, status, due_date, paid_at,
// client_name, client_email, description, created_at, updated_at
func scanInvoice(s scanner) (*invoice.Invoice, error) {
	var inv invoice.Invoice

	var currency, status string

	if err := s.Scan(
		&inv.ID, &inv.Amount, &currency, &status, &inv.DueDate, &inv.PaidAt,
		&inv.ClientName, &inv.ClientEmail, &inv.Description,
		&inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return nil, err
	}

	inv.Currency = payment.Currency(currency)
	inv.Status = invoice.Status(status)

	return &inv, nil
}

const selectInvoiceColumns = `
	id, amount, currency, status, due_date, paid_at,
	client_name, client_email, description, created_at, updated_at
`

func (s *Store) GetInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return s.getInvoice(ctx, id, "")
}

func (s *Store) LockInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return s.getInvoice(ctx, id, " FOR UPDATE")
}

func (s *Store) getInvoice(ctx context.Context, id uuid.UUID, suffix string) (*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + ` FROM invoices WHERE id = $1` + suffix

	inv, err := scanInvoice(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, invoice.ErrNotFound
		}

		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, filter invoice.ListFilter) ([]*invoice.Invoice, error) {
	query := `SELECT ` + selectInvoiceColumns + ` FROM invoices WHERE 1 = 1`

	var args []any

	argIdx := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)

		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*invoice.Invoice

	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invoice: %w", err)
		}

		invoices = append(invoices, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoices: %w", err)
	}

	return invoices, nil
}

// MarkPaid is a no-op on an invoice that is already paid, so paid_at keeps
// its first value.
func (s *Store) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	query := `
		UPDATE invoices
		SET status = $1, paid_at = $2, updated_at = NOW()
		WHERE id = $3 AND status <> $1
	`

	if _, err := s.db.ExecContext(ctx, query, invoice.StatusPaid, paidAt, id); err != nil {
		return fmt.Errorf("marking invoice paid: %w", err)
	}

	return nil
}

func (s *Store) Reopen(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE invoices
		SET status = $1, paid_at = NULL, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	if _, err := s.db.ExecContext(ctx, query, invoice.StatusSent, id, invoice.StatusPaid); err != nil {
		return fmt.Errorf("reopening invoice: %w", err)
	}

	return nil
}
