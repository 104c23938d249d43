package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/payflow/internal/admin"
	"github.com/MrJamesThe3rd/payflow/internal/http/auth"
	paymentHandler "github.com/MrJamesThe3rd/payflow/internal/http/payment"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

const secret = "test-secret"

type stubLedger map[string]*ledger.Payment

func (s stubLedger) Get(_ context.Context, id string) (*ledger.Payment, error) {
	p, ok := s[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}

	return p, nil
}

func (s stubLedger) ListRecent(_ context.Context, limit int) ([]*ledger.Payment, error) {
	var out []*ledger.Payment
	for _, p := range s {
		out = append(out, p)
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

type stubAdmin struct {
	statusErr error
	refundErr error

	gotProvider payment.Provider
	gotAmount   *decimal.Decimal
}

func (s *stubAdmin) Status(_ context.Context, id string, p payment.Provider) (*admin.StatusResult, error) {
	s.gotProvider = p
	if s.statusErr != nil {
		return nil, s.statusErr
	}

	if p == "" {
		p = payment.ProviderStripe
	}

	return &admin.StatusResult{TransactionID: id, Provider: p, Status: payment.StatusCompleted}, nil
}

func (s *stubAdmin) Refund(_ context.Context, _ string, amount *decimal.Decimal) (*admin.RefundResult, error) {
	s.gotAmount = amount
	if s.refundErr != nil {
		return nil, s.refundErr
	}

	refunded := decimal.NewFromInt(100)
	if amount != nil {
		refunded = *amount
	}

	return &admin.RefundResult{Success: true, RefundID: "re_1", Amount: refunded, Reopened: amount == nil}, nil
}

func newRouter(l paymentHandler.Ledger, a paymentHandler.Admin) http.Handler {
	r := chi.NewRouter()
	r.Use(auth.Middleware(secret))
	r.Route("/payments", paymentHandler.NewHandler(l, a).Routes)

	return r
}

func do(t *testing.T, h http.Handler, method, path, role, body string) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.IssueToken(secret, "tester", role, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func fixtures() stubLedger {
	return stubLedger{
		"pi_1": {
			ID:            uuid.New(),
			TransactionID: "pi_1",
			InvoiceID:     uuid.New(),
			Amount:        decimal.NewFromInt(100),
			Currency:      payment.CurrencyUSD,
			Provider:      payment.ProviderStripe,
			Status:        payment.StatusCompleted,
			Metadata:      map[string]string{"session_id": "cs_1"},
		},
	}
}

func TestHandler_Get(t *testing.T) {
	h := newRouter(fixtures(), &stubAdmin{})

	rec := do(t, h, http.MethodGet, "/payments/pi_1", auth.RoleService, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pi_1", body["transaction_id"])
	assert.Equal(t, "100", body["amount"])
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, map[string]any{"session_id": "cs_1"}, body["metadata"])

	rec = do(t, h, http.MethodGet, "/payments/pi_missing", auth.RoleService, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "payment not found", strings.TrimSpace(rec.Body.String()))
}

func TestHandler_List(t *testing.T) {
	h := newRouter(fixtures(), &stubAdmin{})

	rec := do(t, h, http.MethodGet, "/payments?limit=10", auth.RoleOperator, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 1)

	rec = do(t, h, http.MethodGet, "/payments?limit=-1", auth.RoleOperator, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Status(t *testing.T) {
	type testCase struct {
		name         string
		query        string
		statusErr    error
		wantCode     int
		wantProvider payment.Provider
	}

	tests := []testCase{
		{name: "FromLedger", wantCode: http.StatusOK},
		{name: "Override", query: "?provider=MoMo", wantCode: http.StatusOK, wantProvider: payment.ProviderMoMo},
		{name: "UnknownProvider", query: "?provider=paypal", wantCode: http.StatusBadRequest},
		{
			name:      "ProviderDown",
			statusErr: &payment.ProviderAPIError{Provider: payment.ProviderStripe, Op: "status"},
			wantCode:  http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubAdmin{statusErr: tt.statusErr}

			rec := do(t, newRouter(fixtures(), a), http.MethodGet, "/payments/pi_1/status"+tt.query, auth.RoleService, "")
			require.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantProvider, a.gotProvider)

			if tt.wantCode == http.StatusOK {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, "pi_1", body["transaction_id"])
				assert.Equal(t, "completed", body["status"])
			}
		})
	}
}

func TestHandler_Refund(t *testing.T) {
	type testCase struct {
		name       string
		role       string
		body       string
		refundErr  error
		wantCode   int
		wantAmount *decimal.Decimal
	}

	tests := []testCase{
		{name: "Full", role: auth.RoleAdmin, body: ``, wantCode: http.StatusOK},
		{name: "FullEmptyObject", role: auth.RoleAdmin, body: `{}`, wantCode: http.StatusOK},
		{name: "Partial", role: auth.RoleAdmin, body: `{"amount":"25.50"}`, wantCode: http.StatusOK, wantAmount: new(decimal.RequireFromString("25.50"))},
		{name: "NotAdmin", role: auth.RoleOperator, body: `{}`, wantCode: http.StatusForbidden},
		{name: "BadAmount", role: auth.RoleAdmin, body: `{"amount":"lots"}`, wantCode: http.StatusBadRequest},
		{name: "BadJSON", role: auth.RoleAdmin, body: `{`, wantCode: http.StatusBadRequest},
		{name: "NotRefundable", role: auth.RoleAdmin, body: `{}`, refundErr: admin.ErrNotRefundable, wantCode: http.StatusConflict},
		{name: "TooMuch", role: auth.RoleAdmin, body: `{"amount":"500"}`, refundErr: admin.ErrInvalidAmount, wantCode: http.StatusUnprocessableEntity},
		{
			name:      "Unsupported",
			role:      auth.RoleAdmin,
			body:      `{}`,
			refundErr: &payment.UnsupportedOperationError{Provider: payment.ProviderMoMo, Op: "refund"},
			wantCode:  http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubAdmin{refundErr: tt.refundErr}

			rec := do(t, newRouter(fixtures(), a), http.MethodPost, "/payments/pi_1/refund", tt.role, tt.body)
			require.Equal(t, tt.wantCode, rec.Code)

			if tt.wantAmount != nil {
				require.NotNil(t, a.gotAmount)
				assert.True(t, tt.wantAmount.Equal(*a.gotAmount))
			}

			if tt.wantCode != http.StatusOK {
				return
			}

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, true, body["success"])
			assert.Equal(t, "re_1", body["refund_id"])
		})
	}
}
