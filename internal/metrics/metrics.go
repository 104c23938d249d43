package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payflow_webhook_events_total",
			Help: "Webhook deliveries by provider and final state",
		},
		[]string{"provider", "state"},
	)

	checkoutSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payflow_checkout_sessions_total",
			Help: "Checkout session attempts by provider and result",
		},
		[]string{"provider", "result"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payflow_notifications_total",
			Help: "Notifications by kind and result (sent, failed, dropped)",
		},
		[]string{"kind", "result"},
	)

	invoicesPaidTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payflow_invoices_paid_total",
			Help: "Invoices moved to paid",
		},
	)

	overpaymentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payflow_overpayments_total",
			Help: "Settlements where completed payments exceeded the invoice amount",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(webhookEventsTotal)
	prometheus.MustRegister(checkoutSessionsTotal)
	prometheus.MustRegister(notificationsTotal)
	prometheus.MustRegister(invoicesPaidTotal)
	prometheus.MustRegister(overpaymentsTotal)
}

// Middleware records request counts and latency labelled by chi route
// pattern, so path parameters do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordWebhook(provider, state string) {
	webhookEventsTotal.WithLabelValues(provider, state).Inc()
}

func RecordCheckout(provider, result string) {
	checkoutSessionsTotal.WithLabelValues(provider, result).Inc()
}

func RecordNotification(kind, result string) {
	notificationsTotal.WithLabelValues(kind, result).Inc()
}

func RecordInvoicePaid() {
	invoicesPaidTotal.Inc()
}

func RecordOverpayment() {
	overpaymentsTotal.Inc()
}
