package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/payflow/internal/admin"
	"github.com/MrJamesThe3rd/payflow/internal/checkout"
	payflowHttp "github.com/MrJamesThe3rd/payflow/internal/http"
	"github.com/MrJamesThe3rd/payflow/internal/http/auth"
	checkoutHandler "github.com/MrJamesThe3rd/payflow/internal/http/checkout"
	invoiceHandler "github.com/MrJamesThe3rd/payflow/internal/http/invoice"
	paymentHandler "github.com/MrJamesThe3rd/payflow/internal/http/payment"
	statementHandler "github.com/MrJamesThe3rd/payflow/internal/http/statement"
	webhookHandler "github.com/MrJamesThe3rd/payflow/internal/http/webhook"
	"github.com/MrJamesThe3rd/payflow/internal/invoice"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/ledger/ledgertest"
	"github.com/MrJamesThe3rd/payflow/internal/notify"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
	"github.com/MrJamesThe3rd/payflow/internal/payment/card"
	"github.com/MrJamesThe3rd/payflow/internal/payment/wallet"
	"github.com/MrJamesThe3rd/payflow/internal/reconcile"
	"github.com/MrJamesThe3rd/payflow/internal/statement"
	"github.com/MrJamesThe3rd/payflow/internal/statement/providercsv"
	"github.com/MrJamesThe3rd/payflow/internal/webhook"
)

const (
	jwtSecret  = "router-test-secret"
	momoSecret = "momo-webhook-secret"
)

type queue struct {
	mu     sync.Mutex
	events []notify.Event
}

func (q *queue) Enqueue(e notify.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.events = append(q.events, e)

	return true
}

// fakeWallet plays the regional wallet's REST API.
func fakeWallet(t *testing.T) *httptest.Server {
	t.Helper()

	r := chi.NewRouter()
	r.Post("/v1/checkouts", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TransactionID string `json:"transaction_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"checkout_url":   "https://pay.momo.test/" + req.TransactionID,
			"transaction_id": req.TransactionID,
		})
	})
	r.Get("/v1/transactions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"succeeded"}`))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv
}

type app struct {
	handler http.Handler
	mem     *ledgertest.Memory
	queue   *queue
}

func newApp(t *testing.T) *app {
	t.Helper()

	momo, err := wallet.New(wallet.Config{
		Provider:      payment.ProviderMoMo,
		BaseURL:       fakeWallet(t).URL,
		APIKey:        "momo-key",
		WebhookSecret: momoSecret,
	}, nil)
	require.NoError(t, err)

	router, err := payment.NewRouter(payment.RouterConfig{RegionalProvider: payment.ProviderMoMo},
		card.New(card.Config{}, nil), momo)
	require.NoError(t, err)

	a := &app{mem: ledgertest.New(), queue: &queue{}}

	var (
		invoiceService   = invoice.NewService(a.mem)
		ledgerService    = ledger.NewService(a.mem)
		reconcileService = reconcile.NewService(a.mem, nil)
		checkoutService  = checkout.NewService(checkout.Config{
			SuccessURL: "https://shop.test/ok",
			CancelURL:  "https://shop.test/cancel",
		}, invoiceService, router, ledgerService, nil)
		adminService     = admin.NewService(ledgerService, router, reconcileService, a.queue, time.Second, nil)
		statementService = statement.NewService(ledgerService, map[payment.Provider]statement.Parser{
			payment.ProviderMoMo: providercsv.NewParser(providercsv.MoMo),
		}, nil)
		webhookService = webhook.NewService(webhook.NewMockRepository(gomock.NewController(t)), router, reconcileService, a.queue, nil)
	)

	a.handler = payflowHttp.New(
		payflowHttp.Options{JWTSecret: jwtSecret, AllowedOrigins: []string{"https://shop.test"}},
		checkoutHandler.NewHandler(checkoutService),
		paymentHandler.NewHandler(ledgerService, adminService),
		invoiceHandler.NewHandler(invoiceService, ledgerService, reconcileService),
		statementHandler.NewHandler(statementService),
		webhookHandler.NewHandler(webhookService, 0),
	)

	return a
}

func (a *app) do(t *testing.T, method, path, role string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if role != "" {
		token, err := auth.IssueToken(jwtSecret, "router-test", role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	return rec
}

func TestRouter_CheckoutToPaidInvoice(t *testing.T) {
	a := newApp(t)
	id := a.mem.AddInvoice(invoice.Invoice{
		Amount:      decimal.NewFromInt(150000),
		Currency:    payment.CurrencyVND,
		Status:      invoice.StatusSent,
		ClientEmail: "client@example.test",
	})

	rec := a.do(t, http.MethodPost, "/api/v1/checkout", auth.RoleService,
		[]byte(`{"invoice_id":"`+id.String()+`"}`), map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sess map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "momo", sess["provider"])

	txID, _ := sess["session_id"].(string)
	require.NotEmpty(t, txID)
	assert.Equal(t, "https://pay.momo.test/"+txID, sess["payment_url"])

	body, err := json.Marshal(map[string]any{
		"event_id":       "ev_1",
		"event_type":     "payment.succeeded",
		"transaction_id": txID,
		"amount":         150000,
		"currency":       "VND",
		"created_at":     time.Now().UTC(),
	})
	require.NoError(t, err)

	rec = a.do(t, http.MethodPost, "/webhooks/momo", "", body,
		map[string]string{"X-Momo-Signature": wallet.NewSigner(momoSecret).Sign(body)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true,"status":"ok","message":"processed"}`, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/v1/invoices/"+id.String(), auth.RoleOperator, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var inv map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, "paid", inv["status"])
	assert.Equal(t, "150000", inv["completed_total"])

	rec = a.do(t, http.MethodGet, "/api/v1/payments/"+txID+"/status", auth.RoleOperator, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"transaction_id":"`+txID+`","provider":"momo","status":"completed"}`, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/api/v1/payments/"+txID+"/refund", auth.RoleAdmin, []byte(`{}`), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/checkout", auth.RoleService,
		[]byte(`{"invoice_id":"`+id.String()+`"}`), map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invoice already paid", strings.TrimSpace(rec.Body.String()))
}

func TestRouter_Access(t *testing.T) {
	a := newApp(t)

	type testCase struct {
		name     string
		method   string
		path     string
		role     string
		header   map[string]string
		wantCode int
	}

	tests := []testCase{
		{name: "Healthz", method: http.MethodGet, path: "/healthz", wantCode: http.StatusOK},
		{name: "Metrics", method: http.MethodGet, path: "/metrics", wantCode: http.StatusOK},
		{name: "NoToken", method: http.MethodGet, path: "/api/v1/payments", wantCode: http.StatusUnauthorized},
		{name: "Token", method: http.MethodGet, path: "/api/v1/payments", role: auth.RoleOperator, wantCode: http.StatusOK},
		{
			name:     "UnreconciledNeedsAdmin",
			method:   http.MethodGet,
			path:     "/api/v1/webhooks/unreconciled",
			role:     auth.RoleOperator,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "CheckoutNeedsJSON",
			method:   http.MethodPost,
			path:     "/api/v1/checkout",
			role:     auth.RoleService,
			header:   map[string]string{"Content-Type": "text/plain"},
			wantCode: http.StatusUnsupportedMediaType,
		},
		{
			name:     "StatementsNeedAdmin",
			method:   http.MethodGet,
			path:     "/api/v1/statements",
			role:     auth.RoleOperator,
			wantCode: http.StatusForbidden,
		},
		{name: "Statements", method: http.MethodGet, path: "/api/v1/statements", role: auth.RoleAdmin, wantCode: http.StatusOK},
		{name: "WebhookUnknownProvider", method: http.MethodPost, path: "/webhooks/paypal", wantCode: http.StatusNotFound},
		{name: "InvoiceNotFound", method: http.MethodGet, path: "/api/v1/invoices/" + uuid.NewString(), role: auth.RoleOperator, wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, tt.method, tt.path, tt.role, []byte(`{}`), tt.header)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestRouter_WebhookSignatureFailureIsAcknowledged(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/webhooks/momo", "", []byte(`{"event_id":"ev_x"}`),
		map[string]string{"X-Momo-Signature": "forged"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":false,"status":"error","message":"signature verification failed"}`, rec.Body.String())
	assert.Empty(t, a.queue.events)
}
