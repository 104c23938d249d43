package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/invoice"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
)

// InvoiceModel looks up one invoice and the payments recorded against it.
type InvoiceModel struct {
	CommonModel
	invoices Invoices
	ledger   Ledger
	settler  Settler

	idInput textinput.Model
	table   table.Model

	current  *invoice.Invoice
	payments []*ledger.Payment
	total    decimal.Decimal

	loading bool
	status  string
}

func NewInvoiceModel(invoices Invoices, l Ledger, settler Settler) InvoiceModel {
	ti := textinput.New()
	ti.Placeholder = "invoice id"
	ti.Width = 40
	ti.Focus()

	columns := []table.Column{
		{Title: "Created", Width: 16},
		{Title: "Provider", Width: 8},
		{Title: "Status", Width: 10},
		{Title: "Amount", Width: 16},
		{Title: "Transaction", Width: 36},
	}

	return InvoiceModel{
		invoices: invoices,
		ledger:   l,
		settler:  settler,
		idInput:  ti,
		table:    newTable(columns, 8),
	}
}

func (m InvoiceModel) Title() string { return "Invoice Payments" }
func (m InvoiceModel) ShortHelp() string {
	return "Enter: look up | ctrl+s: settle | Esc: back"
}

func (m InvoiceModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m InvoiceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "enter":
			id, err := uuid.Parse(strings.TrimSpace(m.idInput.Value()))
			if err != nil {
				m.status = "Not a valid invoice id"
				return m, nil
			}
			m.loading = true
			return m, m.loadCmd(id)
		case "ctrl+s":
			if m.current != nil {
				m.status = "Settling..."
				return m, m.settleCmd(m.current.ID)
			}
		}

	case loadInvoiceMsg:
		m.loading = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			m.current = nil
			m.table.SetRows(nil)
			return m, nil
		}
		m.status = ""
		m.current = msg.invoice
		m.payments = msg.payments
		m.total = msg.total
		m.refreshTable()
		return m, nil

	case settleMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Settle failed: %v", msg.err)
			return m, nil
		}
		switch {
		case msg.paid:
			m.status = "Invoice marked paid"
		case msg.overpaid:
			m.status = "Invoice is overpaid"
		default:
			m.status = "Nothing to settle"
		}
		if m.current == nil {
			return m, nil
		}
		return m, m.loadCmd(m.current.ID)
	}

	m.idInput, cmd = m.idInput.Update(msg)

	return m, cmd
}

func (m InvoiceModel) View() string {
	parts := []string{"Invoice Payments", "", m.idInput.View()}

	if m.loading {
		parts = append(parts, "", "Loading...")
	}

	if m.current != nil {
		inv := m.current
		info := fmt.Sprintf(
			"Status: %s\nAmount: %s\nPaid so far: %s\nClient: %s %s",
			activeStyle(string(inv.Status)),
			FormatAmount(inv.Amount, inv.Currency),
			FormatAmount(m.total, inv.Currency),
			inv.ClientName,
			inv.ClientEmail,
		)

		if inv.PaidAt != nil {
			info += "\nPaid at: " + FormatTime(*inv.PaidAt)
		}

		parts = append(parts, "", info, "", boxed(m.table.View()))
	}

	if m.status != "" {
		parts = append(parts, "", lipgloss.NewStyle().Faint(true).Render(m.status))
	}

	parts = append(parts, "", "("+m.ShortHelp()+")")

	return lipgloss.NewStyle().Padding(2).Render(strings.Join(parts, "\n"))
}

func (m *InvoiceModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.payments))
	for _, p := range m.payments {
		rows = append(rows, table.Row{
			FormatTime(p.CreatedAt),
			string(p.Provider),
			string(p.Status),
			FormatAmount(p.Amount, p.Currency),
			p.TransactionID,
		})
	}
	m.table.SetRows(rows)
}

type loadInvoiceMsg struct {
	invoice  *invoice.Invoice
	payments []*ledger.Payment
	total    decimal.Decimal
	err      error
}

func (m InvoiceModel) loadCmd(id uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		inv, err := m.invoices.Get(ctx, id)
		if err != nil {
			return loadInvoiceMsg{err: err}
		}

		payments, err := m.ledger.ListByInvoice(ctx, id)
		if err != nil {
			return loadInvoiceMsg{err: err}
		}

		total, err := m.ledger.SumCompleted(ctx, id)
		if err != nil {
			return loadInvoiceMsg{err: err}
		}

		return loadInvoiceMsg{invoice: inv, payments: payments, total: total}
	}
}

type settleMsg struct {
	paid     bool
	overpaid bool
	err      error
}

func (m InvoiceModel) settleCmd(id uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		applied, err := m.settler.Settle(ctx, id)
		if err != nil {
			return settleMsg{err: err}
		}

		return settleMsg{paid: applied.InvoicePaid, overpaid: applied.Overpaid}
	}
}
