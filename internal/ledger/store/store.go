package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/database"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

const foreignKeyViolation = "23503"

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

// Expected column order: id, transaction_id, invoice_id, amount, currency,
// provider, status, metadata, created_at, updated_at
func scanPayment(s scanner) (*ledger.Payment, error) {
	var p ledger.Payment

	var currency, provider, status string

	var metadata []byte

	if err := s.Scan(
		&p.ID, &p.TransactionID, &p.InvoiceID, &p.Amount, &currency,
		&provider, &status, &metadata, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Currency = payment.Currency(currency)
	p.Provider = payment.Provider(provider)
	p.Status = payment.Status(status)
	p.Metadata = map[string]string{}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
	}

	return &p, nil
}

const selectPaymentColumns = `
	id, transaction_id, invoice_id, amount, currency,
	provider, status, metadata, created_at, updated_at
`

func encodeMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}

	return json.Marshal(m)
}

func (s *Store) GetPayment(ctx context.Context, transactionID string) (*ledger.Payment, error) {
	return s.getPayment(ctx, transactionID, "")
}

func (s *Store) LockPayment(ctx context.Context, transactionID string) (*ledger.Payment, error) {
	return s.getPayment(ctx, transactionID, " FOR UPDATE")
}

func (s *Store) getPayment(ctx context.Context, transactionID, suffix string) (*ledger.Payment, error) {
	query := `SELECT ` + selectPaymentColumns + ` FROM payments WHERE transaction_id = $1` + suffix

	p, err := scanPayment(s.db.QueryRowContext(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}

		return nil, fmt.Errorf("getting payment: %w", err)
	}

	return p, nil
}

func (s *Store) InsertPayment(ctx context.Context, p *ledger.Payment) (bool, error) {
	metadata, err := encodeMetadata(p.Metadata)
	if err != nil {
		return false, fmt.Errorf("encoding metadata: %w", err)
	}

	query := `
		INSERT INTO payments (transaction_id, invoice_id, amount, currency, provider, status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (transaction_id) DO NOTHING
		RETURNING id, created_at
	`

	err = s.db.QueryRowContext(ctx, query,
		p.TransactionID,
		p.InvoiceID,
		p.Amount,
		p.Currency,
		p.Provider,
		p.Status,
		metadata,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return false, fmt.Errorf("%w: invoice %s does not exist", ledger.ErrUncorrelated, p.InvoiceID)
		}

		return false, fmt.Errorf("inserting payment: %w", err)
	}

	return true, nil
}

func (s *Store) UpdatePayment(ctx context.Context, p *ledger.Payment) error {
	metadata, err := encodeMetadata(p.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	query := `
		UPDATE payments
		SET status = $1, metadata = $2, updated_at = NOW()
		WHERE transaction_id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, p.Status, metadata, p.TransactionID); err != nil {
		return fmt.Errorf("updating payment: %w", err)
	}

	return nil
}

func (s *Store) RekeyPayment(ctx context.Context, from, to string) error {
	query := `
		UPDATE payments
		SET transaction_id = $1, updated_at = NOW()
		WHERE transaction_id = $2
	`

	res, err := s.db.ExecContext(ctx, query, to, from)
	if err != nil {
		return fmt.Errorf("rekeying payment: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ledger.ErrNotFound
	}

	return nil
}

func (s *Store) DeletePayment(ctx context.Context, transactionID string) error {
	query := `DELETE FROM payments WHERE transaction_id = $1`

	res, err := s.db.ExecContext(ctx, query, transactionID)
	if err != nil {
		return fmt.Errorf("deleting payment: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ledger.ErrNotFound
	}

	return nil
}

func (s *Store) SumCompleted(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE invoice_id = $1 AND status = $2
	`

	var sum decimal.Decimal
	if err := s.db.QueryRowContext(ctx, query, invoiceID, payment.StatusCompleted).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("summing completed payments: %w", err)
	}

	return sum, nil
}

func (s *Store) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*ledger.Payment, error) {
	query := `SELECT ` + selectPaymentColumns + `
		FROM payments
		WHERE invoice_id = $1
		ORDER BY created_at ASC`

	return s.list(ctx, query, invoiceID)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]*ledger.Payment, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + selectPaymentColumns + `
		FROM payments
		ORDER BY created_at DESC
		LIMIT $1`

	return s.list(ctx, query, limit)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*ledger.Payment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()

	var payments []*ledger.Payment

	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}

		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payments: %w", err)
	}

	return payments, nil
}
