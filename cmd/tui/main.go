package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/payflow/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/payflow/internal/admin"
	"github.com/MrJamesThe3rd/payflow/internal/app"
	"github.com/MrJamesThe3rd/payflow/internal/config"
	"github.com/MrJamesThe3rd/payflow/internal/database"
	"github.com/MrJamesThe3rd/payflow/internal/invoice"
	invoiceStore "github.com/MrJamesThe3rd/payflow/internal/invoice/store"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	ledgerStore "github.com/MrJamesThe3rd/payflow/internal/ledger/store"
	"github.com/MrJamesThe3rd/payflow/internal/notify"
	"github.com/MrJamesThe3rd/payflow/internal/reconcile"
	"github.com/MrJamesThe3rd/payflow/internal/webhook"
	webhookStore "github.com/MrJamesThe3rd/payflow/internal/webhook/store"
)

type model struct {
	invoiceService   *invoice.Service
	ledgerService    *ledger.Service
	reconcileService *reconcile.Service
	adminService     *admin.Service
	webhookService   *webhook.Service

	currentView View

	paymentsView     view.PaymentsModel
	invoiceView      view.InvoiceModel
	unreconciledView view.UnreconciledModel
}

type View int

const (
	ViewMenu         View = 0
	ViewPayments     View = 1
	ViewInvoice      View = 2
	ViewUnreconciled View = 3
)

type deps struct {
	db         *sql.DB
	dispatcher *notify.Dispatcher
	close      func() error
}

func initialModel() (model, *deps) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI; logs go to stderr only when asked.
	logger := slog.New(slog.DiscardHandler)
	if os.Getenv("PAYFLOW_TUI_DEBUG") != "" {
		logger = slog.Default()
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	router, err := app.NewPaymentRouter(cfg, logger)
	if err != nil {
		slog.Error("failed to build payment router", "error", err)
		os.Exit(1)
	}

	notifier, closeNotifier, err := app.NewNotifier(cfg, logger)
	if err != nil {
		slog.Error("failed to build notifier", "error", err)
		os.Exit(1)
	}

	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		Workers:   1,
		QueueSize: cfg.Notify.QueueSize,
		Timeout:   cfg.Notify.Timeout,
	}, notifier, logger)
	dispatcher.Start()

	invSvc := invoice.NewService(invoiceStore.New(db))
	ledgerSvc := ledger.NewService(ledgerStore.New(db))
	recSvc := reconcile.NewService(ledgerStore.NewRunner(db), logger)
	adminSvc := admin.NewService(ledgerSvc, router, recSvc, dispatcher, cfg.Checkout.Timeout, logger)
	whSvc := webhook.NewService(webhookStore.New(db), router, recSvc, dispatcher, logger)

	m := model{
		invoiceService:   invSvc,
		ledgerService:    ledgerSvc,
		reconcileService: recSvc,
		adminService:     adminSvc,
		webhookService:   whSvc,
		currentView:      ViewMenu,
		paymentsView:     view.NewPaymentsModel(ledgerSvc, adminSvc),
		invoiceView:      view.NewInvoiceModel(invSvc, ledgerSvc, recSvc),
		unreconciledView: view.NewUnreconciledModel(whSvc),
	}

	return m, &deps{db: db, dispatcher: dispatcher, close: closeNotifier}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewPayments
				m.paymentsView = view.NewPaymentsModel(m.ledgerService, m.adminService)

				return m, m.paymentsView.Init()
			case "2":
				m.currentView = ViewInvoice
				m.invoiceView = view.NewInvoiceModel(m.invoiceService, m.ledgerService, m.reconcileService)

				return m, m.invoiceView.Init()
			case "3":
				m.currentView = ViewUnreconciled
				m.unreconciledView = view.NewUnreconciledModel(m.webhookService)

				return m, m.unreconciledView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewPayments:
		var newModel tea.Model
		newModel, cmd = m.paymentsView.Update(msg)
		m.paymentsView = newModel.(view.PaymentsModel)
	case ViewInvoice:
		var newModel tea.Model
		newModel, cmd = m.invoiceView.Update(msg)
		m.invoiceView = newModel.(view.InvoiceModel)
	case ViewUnreconciled:
		var newModel tea.Model
		newModel, cmd = m.unreconciledView.Update(msg)
		m.unreconciledView = newModel.(view.UnreconciledModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"Payflow Operator Console\n\n" +
				"1. Recent Payments\n" +
				"2. Invoice Payments\n" +
				"3. Unreconciled Webhooks\n\n" +
				"q. Quit",
		)
	case ViewPayments:
		return m.paymentsView.View()
	case ViewInvoice:
		return m.invoiceView.View()
	case ViewUnreconciled:
		return m.unreconciledView.View()
	}

	return "Unknown View"
}

func main() {
	m, d := initialModel()

	_, err := tea.NewProgram(m).Run()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := d.dispatcher.Shutdown(ctx); err != nil {
		slog.Error("notification queue not drained", "error", err)
	}
	cancel()

	_ = d.close()
	d.db.Close()

	if err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
