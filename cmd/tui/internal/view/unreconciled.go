package view

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/payflow/internal/webhook"
)

// UnreconciledModel lists webhook events that could not be tied to an
// invoice and need a human.
type UnreconciledModel struct {
	CommonModel
	svc Unreconciled

	table  table.Model
	events []*webhook.UnreconciledEvent

	loading bool
	err     error
}

func NewUnreconciledModel(svc Unreconciled) UnreconciledModel {
	columns := []table.Column{
		{Title: "Received", Width: 16},
		{Title: "Provider", Width: 8},
		{Title: "Event", Width: 28},
		{Title: "Type", Width: 28},
		{Title: "Transaction", Width: 30},
	}

	return UnreconciledModel{
		svc:     svc,
		table:   newTable(columns, 15),
		loading: true,
	}
}

func (m UnreconciledModel) Title() string     { return "Unreconciled Webhooks" }
func (m UnreconciledModel) ShortHelp() string { return "Esc: back | r: refresh" }

func (m UnreconciledModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m UnreconciledModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadUnreconciledMsg:
		m.loading = false
		m.err = msg.err
		m.events = msg.events
		m.refreshTable()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCmd()
		}

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 12)
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m UnreconciledModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading events...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	if len(m.events) == 0 {
		return lipgloss.NewStyle().Padding(2).Render("Every webhook has been matched.\n\n(Esc to back)")
	}

	reason := ""
	if idx := m.table.Cursor(); idx >= 0 && idx < len(m.events) {
		reason = "Reason: " + m.events[idx].Reason
	}

	return lipgloss.NewStyle().Padding(1).Render(lipgloss.JoinVertical(lipgloss.Left,
		boxed(m.table.View()),
		lipgloss.NewStyle().Faint(true).Render(reason),
	))
}

func (m *UnreconciledModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.events))
	for _, e := range m.events {
		rows = append(rows, table.Row{
			FormatTime(e.CreatedAt),
			string(e.Provider),
			e.EventID,
			e.EventType,
			e.TransactionID,
		})
	}
	m.table.SetRows(rows)
}

type loadUnreconciledMsg struct {
	events []*webhook.UnreconciledEvent
	err    error
}

func (m UnreconciledModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		events, err := m.svc.Unreconciled(ctx, 100)
		return loadUnreconciledMsg{events: events, err: err}
	}
}
