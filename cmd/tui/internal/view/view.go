package view

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/admin"
	"github.com/MrJamesThe3rd/payflow/internal/invoice"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
	"github.com/MrJamesThe3rd/payflow/internal/reconcile"
	"github.com/MrJamesThe3rd/payflow/internal/webhook"
)

// View is the interface that all TUI screens implement.
type View interface {
	tea.Model
	Title() string
	ShortHelp() string
}

type Ledger interface {
	ListRecent(ctx context.Context, limit int) ([]*ledger.Payment, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*ledger.Payment, error)
	SumCompleted(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
}

type Admin interface {
	Status(ctx context.Context, transactionID string, provider payment.Provider) (*admin.StatusResult, error)
	Refund(ctx context.Context, transactionID string, amount *decimal.Decimal) (*admin.RefundResult, error)
}

type Invoices interface {
	Get(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
}

type Settler interface {
	Settle(ctx context.Context, invoiceID uuid.UUID) (*reconcile.Applied, error)
}

type Unreconciled interface {
	Unreconciled(ctx context.Context, limit int) ([]*webhook.UnreconciledEvent, error)
}
