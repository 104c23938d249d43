// Package ledgertest provides an in-memory ledger and invoice store for
// tests that exercise the settlement flow end to end.
package ledgertest

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/invoice"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

// Memory implements ledger.Repository, invoice.Repository and the
// reconcile Runner. Transactions are serialized and roll back on error.
type Memory struct {
	txMu sync.Mutex

	mu       sync.Mutex
	payments map[string]*ledger.Payment
	invoices map[uuid.UUID]*invoice.Invoice

	// Fail, when set, is consulted before every repository call with the
	// method name; a non-nil result is returned as that call's error.
	Fail func(op string) error
}

func New() *Memory {
	return &Memory{
		payments: map[string]*ledger.Payment{},
		invoices: map[uuid.UUID]*invoice.Invoice{},
	}
}

// AddInvoice stores a copy of inv and returns its id.
func (m *Memory) AddInvoice(inv invoice.Invoice) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}

	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}

	m.invoices[inv.ID] = &inv

	return inv.ID
}

// Invoice returns a snapshot of the stored invoice.
func (m *Memory) Invoice(id uuid.UUID) *invoice.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoices[id]
	if !ok {
		return nil
	}

	cp := *inv

	return &cp
}

// Payments returns snapshots of every row for an invoice.
func (m *Memory) Payments(invoiceID uuid.UUID) []*ledger.Payment {
	out, _ := m.ListByInvoice(context.Background(), invoiceID)
	return out
}

func (m *Memory) InTx(ctx context.Context, fn func(ctx context.Context, payments ledger.Repository, invoices invoice.Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	savedPayments := make(map[string]*ledger.Payment, len(m.payments))
	for k, p := range m.payments {
		savedPayments[k] = clonePayment(p)
	}

	savedInvoices := make(map[uuid.UUID]*invoice.Invoice, len(m.invoices))
	for k, inv := range m.invoices {
		cp := *inv
		savedInvoices[k] = &cp
	}
	m.mu.Unlock()

	if err := fn(ctx, m, m); err != nil {
		m.mu.Lock()
		m.payments = savedPayments
		m.invoices = savedInvoices
		m.mu.Unlock()

		return err
	}

	return nil
}

func (m *Memory) fail(op string) error {
	if m.Fail == nil {
		return nil
	}

	return m.Fail(op)
}

func clonePayment(p *ledger.Payment) *ledger.Payment {
	cp := *p
	cp.Metadata = maps.Clone(p.Metadata)

	return &cp
}

func (m *Memory) GetPayment(_ context.Context, transactionID string) (*ledger.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("GetPayment"); err != nil {
		return nil, err
	}

	p, ok := m.payments[transactionID]
	if !ok {
		return nil, ledger.ErrNotFound
	}

	return clonePayment(p), nil
}

func (m *Memory) LockPayment(ctx context.Context, transactionID string) (*ledger.Payment, error) {
	return m.GetPayment(ctx, transactionID)
}

func (m *Memory) InsertPayment(_ context.Context, p *ledger.Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("InsertPayment"); err != nil {
		return false, err
	}

	if _, ok := m.payments[p.TransactionID]; ok {
		return false, nil
	}

	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.payments[p.TransactionID] = clonePayment(p)

	return true, nil
}

func (m *Memory) UpdatePayment(_ context.Context, p *ledger.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("UpdatePayment"); err != nil {
		return err
	}

	existing, ok := m.payments[p.TransactionID]
	if !ok {
		return ledger.ErrNotFound
	}

	existing.Status = p.Status
	existing.Metadata = maps.Clone(p.Metadata)
	existing.UpdatedAt = new(time.Now())

	return nil
}

func (m *Memory) RekeyPayment(_ context.Context, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("RekeyPayment"); err != nil {
		return err
	}

	p, ok := m.payments[from]
	if !ok {
		return ledger.ErrNotFound
	}

	delete(m.payments, from)
	p.TransactionID = to
	m.payments[to] = p

	return nil
}

func (m *Memory) DeletePayment(_ context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("DeletePayment"); err != nil {
		return err
	}

	if _, ok := m.payments[transactionID]; !ok {
		return ledger.ErrNotFound
	}

	delete(m.payments, transactionID)

	return nil
}

func (m *Memory) SumCompleted(_ context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("SumCompleted"); err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID && p.Status == payment.StatusCompleted {
			sum = sum.Add(p.Amount)
		}
	}

	return sum, nil
}

func (m *Memory) ListByInvoice(_ context.Context, invoiceID uuid.UUID) ([]*ledger.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*ledger.Payment
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, clonePayment(p))
		}
	}

	slices.SortFunc(out, func(a, b *ledger.Payment) int { return a.CreatedAt.Compare(b.CreatedAt) })

	return out, nil
}

func (m *Memory) ListRecent(_ context.Context, limit int) ([]*ledger.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*ledger.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, clonePayment(p))
	}

	slices.SortFunc(out, func(a, b *ledger.Payment) int { return b.CreatedAt.Compare(a.CreatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (m *Memory) GetInvoice(_ context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("GetInvoice"); err != nil {
		return nil, err
	}

	inv, ok := m.invoices[id]
	if !ok {
		return nil, invoice.ErrNotFound
	}

	cp := *inv

	return &cp, nil
}

func (m *Memory) ListInvoices(_ context.Context, filter invoice.ListFilter) ([]*invoice.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*invoice.Invoice
	for _, inv := range m.invoices {
		if filter.Status != nil && inv.Status != *filter.Status {
			continue
		}

		cp := *inv
		out = append(out, &cp)
	}

	return out, nil
}

func (m *Memory) LockInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return m.GetInvoice(ctx, id)
}

func (m *Memory) MarkPaid(_ context.Context, id uuid.UUID, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("MarkPaid"); err != nil {
		return err
	}

	inv, ok := m.invoices[id]
	if !ok {
		return invoice.ErrNotFound
	}

	if inv.Status != invoice.StatusPaid {
		inv.Status = invoice.StatusPaid
		inv.PaidAt = &paidAt
	}

	return nil
}

func (m *Memory) Reopen(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("Reopen"); err != nil {
		return err
	}

	inv, ok := m.invoices[id]
	if !ok {
		return invoice.ErrNotFound
	}

	if inv.Status == invoice.StatusPaid {
		inv.Status = invoice.StatusSent
		inv.PaidAt = nil
	}

	return nil
}
