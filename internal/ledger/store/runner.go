package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MrJamesThe3rd/payflow/internal/invoice"
	invoicestore "github.com/MrJamesThe3rd/payflow/internal/invoice/store"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
)

// Runner binds the ledger and invoice stores to one database transaction.
type Runner struct {
	db *sql.DB
}

func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

// InTx commits when fn returns nil and rolls back otherwise.
func (r *Runner) InTx(ctx context.Context, fn func(ctx context.Context, payments ledger.Repository, invoices invoice.Repository) error) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	if err := fn(ctx, New(dbTx), invoicestore.New(dbTx)); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
