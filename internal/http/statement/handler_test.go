package statement_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	statementHandler "github.com/MrJamesThe3rd/payflow/internal/http/statement"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/ledger/ledgertest"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
	"github.com/MrJamesThe3rd/payflow/internal/statement"
	"github.com/MrJamesThe3rd/payflow/internal/statement/providercsv"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()

	mem := ledgertest.New()
	_, err := mem.InsertPayment(context.Background(), &ledger.Payment{
		TransactionID: "momo_a",
		InvoiceID:     uuid.New(),
		Amount:        decimal.NewFromInt(150000),
		Currency:      payment.CurrencyVND,
		Provider:      payment.ProviderMoMo,
		Status:        payment.StatusCompleted,
	})
	require.NoError(t, err)

	svc := statement.NewService(ledger.NewService(mem), map[payment.Provider]statement.Parser{
		payment.ProviderMoMo: providercsv.NewParser(providercsv.MoMo),
	}, nil)

	r := chi.NewRouter()
	r.Route("/statements", statementHandler.NewHandler(svc).Routes)

	return r
}

func upload(t *testing.T, field, content string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer

	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "statement.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &body, mw.FormDataContentType()
}

const momoStatement = `Mã đơn hàng,Thời gian tạo,Số tiền,Trạng thái
momo_a,05/10/2026 14:03:11,150.000,Thành công
momo_b,06/10/2026 08:00:00,75.500,Thành công
`

func TestHandler_Check(t *testing.T) {
	h := newRouter(t)

	body, contentType := upload(t, "file", momoStatement)
	req := httptest.NewRequest(http.MethodPost, "/statements/momo", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Provider string `json:"provider"`
		Lines    int    `json:"lines"`
		Matched  int    `json:"matched"`
		Clean    bool   `json:"clean"`
		Findings []struct {
			Kind      string          `json:"kind"`
			Statement map[string]any `json:"statement"`
			Ledger    map[string]any `json:"ledger"`
		} `json:"findings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "momo", resp.Provider)
	assert.Equal(t, 2, resp.Lines)
	assert.Equal(t, 1, resp.Matched)
	assert.False(t, resp.Clean)
	require.Len(t, resp.Findings, 1)
	assert.Equal(t, "missing_in_ledger", resp.Findings[0].Kind)
	assert.Equal(t, "momo_b", resp.Findings[0].Statement["transaction_id"])
	assert.Equal(t, "75500", resp.Findings[0].Statement["amount"])
	assert.Nil(t, resp.Findings[0].Ledger)
}

func TestHandler_CheckErrors(t *testing.T) {
	type testCase struct {
		name     string
		path     string
		field    string
		content  string
		wantCode int
	}

	tests := []testCase{
		{name: "UnknownProvider", path: "/statements/paypal", field: "file", content: momoStatement, wantCode: http.StatusBadRequest},
		{name: "NoFormat", path: "/statements/zalopay", field: "file", content: momoStatement, wantCode: http.StatusNotFound},
		{name: "MissingFile", path: "/statements/momo", field: "upload", content: momoStatement, wantCode: http.StatusBadRequest},
		{name: "WrongExport", path: "/statements/momo", field: "file", content: "a,b\n1,2\n", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := upload(t, tt.field, tt.content)
			req := httptest.NewRequest(http.MethodPost, tt.path, body)
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			newRouter(t).ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_Providers(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/statements", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"providers":["momo"]}`, rec.Body.String())
}
