package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/payflow/internal/http/auth"
	"github.com/MrJamesThe3rd/payflow/internal/http/checkout"
	"github.com/MrJamesThe3rd/payflow/internal/http/invoice"
	"github.com/MrJamesThe3rd/payflow/internal/http/payment"
	"github.com/MrJamesThe3rd/payflow/internal/http/statement"
	"github.com/MrJamesThe3rd/payflow/internal/http/webhook"
	"github.com/MrJamesThe3rd/payflow/internal/metrics"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	// Timeout bounds API requests. Webhooks are not cut short so a slow
	// settlement still commits.
	Timeout time.Duration
	DB      Pinger
}

func New(
	opts Options,
	checkoutV1 *checkout.Handler,
	paymentsV1 *payment.Handler,
	invoicesV1 *invoice.Handler,
	statementsV1 *statement.Handler,
	webhooks *webhook.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(metrics.Middleware)

	router.Get("/healthz", healthz(opts.DB))
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	router.Route("/webhooks", webhooks.Routes)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))

		if opts.Timeout > 0 {
			r.Use(middleware.Timeout(opts.Timeout))
		}

		r.Use(auth.Middleware(opts.JWTSecret))

		r.Route("/checkout", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			checkoutV1.Routes(r)
		})

		r.Route("/payments", paymentsV1.Routes)
		r.Route("/invoices", invoicesV1.Routes)

		r.Route("/statements", func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			statementsV1.Routes(r)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			webhooks.AdminRoutes(r)
		})
	})

	return router
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := db.PingContext(ctx); err != nil {
				slog.Error("health check failed", "error", err)
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)

				return
			}
		}

		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}
}
