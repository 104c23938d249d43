package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/payflow/internal/admin"
	"github.com/MrJamesThe3rd/payflow/internal/app"
	"github.com/MrJamesThe3rd/payflow/internal/checkout"
	"github.com/MrJamesThe3rd/payflow/internal/config"
	"github.com/MrJamesThe3rd/payflow/internal/database"
	payflowHttp "github.com/MrJamesThe3rd/payflow/internal/http"
	checkoutHandler "github.com/MrJamesThe3rd/payflow/internal/http/checkout"
	invoiceHandler "github.com/MrJamesThe3rd/payflow/internal/http/invoice"
	paymentHandler "github.com/MrJamesThe3rd/payflow/internal/http/payment"
	statementHandler "github.com/MrJamesThe3rd/payflow/internal/http/statement"
	webhookHandler "github.com/MrJamesThe3rd/payflow/internal/http/webhook"
	"github.com/MrJamesThe3rd/payflow/internal/invoice"
	invoiceStore "github.com/MrJamesThe3rd/payflow/internal/invoice/store"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	ledgerStore "github.com/MrJamesThe3rd/payflow/internal/ledger/store"
	"github.com/MrJamesThe3rd/payflow/internal/notify"
	"github.com/MrJamesThe3rd/payflow/internal/reconcile"
	"github.com/MrJamesThe3rd/payflow/internal/statement"
	"github.com/MrJamesThe3rd/payflow/internal/webhook"
	webhookStore "github.com/MrJamesThe3rd/payflow/internal/webhook/store"
)

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			return serve(cmd.Context(), cfg, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrate bool) error {
	logger := slog.Default().With("app", cfg.App.Name)

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if migrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}

	router, err := app.NewPaymentRouter(cfg, logger)
	if err != nil {
		return fmt.Errorf("building payment router: %w", err)
	}

	notifier, closeNotifier, err := app.NewNotifier(cfg, logger)
	if err != nil {
		return fmt.Errorf("building notifier: %w", err)
	}
	defer closeNotifier()

	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		Workers:   cfg.Notify.Workers,
		QueueSize: cfg.Notify.QueueSize,
		Timeout:   cfg.Notify.Timeout,
	}, notifier, logger)
	dispatcher.Start()

	var (
		invoiceService   = invoice.NewService(invoiceStore.New(db))
		ledgerService    = ledger.NewService(ledgerStore.New(db))
		reconcileService = reconcile.NewService(ledgerStore.NewRunner(db), logger)
		checkoutService  = checkout.NewService(checkout.Config{
			SuccessURL: cfg.Checkout.SuccessURL,
			CancelURL:  cfg.Checkout.CancelURL,
			Timeout:    cfg.Checkout.Timeout,
		}, invoiceService, router, ledgerService, logger)
		webhookService   = webhook.NewService(webhookStore.New(db), router, reconcileService, dispatcher, logger)
		adminService     = admin.NewService(ledgerService, router, reconcileService, dispatcher, cfg.Checkout.Timeout, logger)
		statementService = statement.NewService(ledgerService, app.StatementParsers(), logger)
	)

	handler := payflowHttp.New(
		payflowHttp.Options{
			JWTSecret:      cfg.Auth.JWTSecret,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			Timeout:        cfg.Server.Timeout,
			DB:             db,
		},
		checkoutHandler.NewHandler(checkoutService),
		paymentHandler.NewHandler(ledgerService, adminService),
		invoiceHandler.NewHandler(invoiceService, ledgerService, reconcileService),
		statementHandler.NewHandler(statementService),
		webhookHandler.NewHandler(webhookService, cfg.Server.MaxWebhookBytes),
	)

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET is empty, every /api/v1 request will be rejected")
	}

	for _, d := range router.Descriptors() {
		logger.Info("payment provider registered", "provider", d.Name, "currencies", d.Currencies, "refunds", d.SupportsRefund)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("starting server", "port", server.Addr, "env", cfg.App.Env)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("notification queue not drained", "error", err)
	}

	return nil
}
