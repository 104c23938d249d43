package view

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

const recentLimit = 200

type paymentsState int

const (
	paymentsStateBrowse paymentsState = iota
	paymentsStateRefund
)

var statusFilters = []payment.Status{
	"",
	payment.StatusPending,
	payment.StatusCompleted,
	payment.StatusFailed,
	payment.StatusRefunded,
}

type PaymentsModel struct {
	CommonModel
	ledger Ledger
	admin  Admin

	state    paymentsState
	table    table.Model
	all      []*ledger.Payment
	payments []*ledger.Payment
	form     *huh.Form

	statusFilterIdx int

	loading bool
	err     error
	status  string

	// Form bindings live behind a pointer so they survive model copies.
	refund *refundForm
}

type refundForm struct {
	amount  string
	confirm bool
}

func NewPaymentsModel(l Ledger, a Admin) PaymentsModel {
	columns := []table.Column{
		{Title: "Created", Width: 16},
		{Title: "Provider", Width: 8},
		{Title: "Status", Width: 10},
		{Title: "Amount", Width: 16},
		{Title: "Transaction", Width: 36},
		{Title: "Invoice", Width: 36},
	}

	return PaymentsModel{
		ledger:  l,
		admin:   a,
		table:   newTable(columns, 15),
		loading: true,
	}
}

func (m PaymentsModel) Title() string { return "Recent Payments" }
func (m PaymentsModel) ShortHelp() string {
	if m.state == paymentsStateRefund {
		return "Navigate form | Esc: cancel"
	}
	return "Esc: back | s: status filter | l: live status | f: refund | r: refresh"
}

func (m PaymentsModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m PaymentsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadPaymentsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.all = msg.payments
		m.refreshTable()
		return m, nil

	case liveStatusMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Status lookup failed: %v", msg.err)
			return m, nil
		}
		m.status = fmt.Sprintf("%s at %s: %s", msg.transactionID, msg.provider, activeStyle(string(msg.status)))
		return m, nil

	case refundMsg:
		m.state = paymentsStateBrowse
		m.form = nil
		m.table.Focus()
		if msg.err != nil {
			m.status = fmt.Sprintf("Refund failed: %v", msg.err)
			return m, nil
		}
		m.status = fmt.Sprintf("Refunded %s (refund %s)", msg.amount, msg.refundID)
		if msg.reopened {
			m.status += ", invoice reopened"
		}
		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	switch m.state {
	case paymentsStateBrowse:
		return m.updateBrowse(msg)
	case paymentsStateRefund:
		return m.updateRefund(msg)
	}

	return m, nil
}

func (m PaymentsModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "s":
			m.statusFilterIdx = (m.statusFilterIdx + 1) % len(statusFilters)
			m.refreshTable()
			return m, nil
		case "l":
			if p := m.selected(); p != nil {
				m.status = "Asking " + string(p.Provider) + "..."
				return m, m.statusCmd(p)
			}
		case "f":
			return m.enterRefundMode()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m PaymentsModel) selected() *ledger.Payment {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.payments) {
		return nil
	}

	return m.payments[idx]
}

func (m PaymentsModel) enterRefundMode() (tea.Model, tea.Cmd) {
	p := m.selected()
	if p == nil {
		return m, nil
	}

	if p.Status != payment.StatusCompleted {
		m.status = fmt.Sprintf("Only completed payments can be refunded (this one is %s)", p.Status)
		return m, nil
	}

	m.refund = &refundForm{}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("amount").
				Title("Amount").
				Description("Leave empty to refund " + FormatAmount(p.Amount, p.Currency)).
				Value(&m.refund.amount).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					d, err := decimal.NewFromString(strings.TrimSpace(s))
					if err != nil {
						return errors.New("not a number")
					}
					if !d.IsPositive() || d.GreaterThan(p.Amount) {
						return fmt.Errorf("must be between 0 and %s", p.Amount)
					}
					return nil
				}),

			huh.NewConfirm().
				Key("confirm").
				Title("Send refund to " + string(p.Provider) + "?").
				Value(&m.refund.confirm),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = paymentsStateRefund
	m.table.Blur()
	return m, m.form.Init()
}

func (m PaymentsModel) updateRefund(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = paymentsStateBrowse
			m.form = nil
			m.table.Focus()
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if !m.refund.confirm {
		m.state = paymentsStateBrowse
		m.form = nil
		m.table.Focus()
		m.status = "Refund cancelled"
		return m, nil
	}

	return m, m.refundCmd()
}

func (m PaymentsModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading payments...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	label := "All"
	if s := statusFilters[m.statusFilterIdx]; s != "" {
		label = string(s)
	}

	header := fmt.Sprintf("Filter: [s] Status: %s | %d shown", activeStyle(label), len(m.payments))

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		boxed(m.table.View()),
	)

	if m.state == paymentsStateRefund && m.form != nil {
		p := m.selected()
		info := ""
		if p != nil {
			info = fmt.Sprintf("%s\n%s", p.TransactionID, FormatAmount(p.Amount, p.Currency))
		}

		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render(fmt.Sprintf("Refund Payment\n\n%s\n\n%s", info, m.form.View()))

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *PaymentsModel) refreshTable() {
	want := statusFilters[m.statusFilterIdx]

	m.payments = nil
	for _, p := range m.all {
		if want == "" || p.Status == want {
			m.payments = append(m.payments, p)
		}
	}

	rows := make([]table.Row, 0, len(m.payments))
	for _, p := range m.payments {
		rows = append(rows, table.Row{
			FormatTime(p.CreatedAt),
			string(p.Provider),
			string(p.Status),
			FormatAmount(p.Amount, p.Currency),
			p.TransactionID,
			p.InvoiceID.String(),
		})
	}
	m.table.SetRows(rows)
}

// Messages

type loadPaymentsMsg struct {
	payments []*ledger.Payment
	err      error
}

func (m PaymentsModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		payments, err := m.ledger.ListRecent(ctx, recentLimit)
		return loadPaymentsMsg{payments: payments, err: err}
	}
}

type liveStatusMsg struct {
	transactionID string
	provider      payment.Provider
	status        payment.Status
	err           error
}

func (m PaymentsModel) statusCmd(p *ledger.Payment) tea.Cmd {
	txID, provider := p.TransactionID, p.Provider

	return func() tea.Msg {
		ctx, cancel := ProviderCtx()
		defer cancel()

		res, err := m.admin.Status(ctx, txID, provider)
		if err != nil {
			return liveStatusMsg{err: err}
		}

		return liveStatusMsg{transactionID: res.TransactionID, provider: res.Provider, status: res.Status}
	}
}

type refundMsg struct {
	refundID string
	amount   string
	reopened bool
	err      error
}

func (m PaymentsModel) refundCmd() tea.Cmd {
	p := m.selected()
	if p == nil {
		return nil
	}

	var amount *decimal.Decimal
	if s := strings.TrimSpace(m.refund.amount); s != "" {
		d := decimal.RequireFromString(s)
		amount = &d
	}

	return func() tea.Msg {
		ctx, cancel := ProviderCtx()
		defer cancel()

		res, err := m.admin.Refund(ctx, p.TransactionID, amount)
		if err != nil {
			return refundMsg{err: err}
		}

		return refundMsg{
			refundID: res.RefundID,
			amount:   FormatAmount(res.Amount, p.Currency),
			reopened: res.Reopened,
		}
	}
}
