package card_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/MrJamesThe3rd/payflow/internal/payment"
	"github.com/MrJamesThe3rd/payflow/internal/payment/card"
)

const whsec = "whsec_test_secret"

func newAdapter(t *testing.T, handler http.HandlerFunc) *card.Adapter {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return card.New(card.Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: whsec,
		APIBaseURL:    ts.URL,
	}, nil)
}

func TestAdapter_CreateCheckoutSession(t *testing.T) {
	invoiceID := uuid.New()

	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "10050", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "usd", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, invoiceID.String(), r.PostForm.Get("client_reference_id"))
		assert.Equal(t, invoiceID.String(), r.PostForm.Get("metadata[invoice_id]"))
		assert.Equal(t, invoiceID.String(), r.PostForm.Get("payment_intent_data[metadata][invoice_id]"))
		assert.Equal(t, "payer@example.com", r.PostForm.Get("customer_email"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1","expires_at":1767225600}`))
	})

	sess, err := a.CreateCheckoutSession(context.Background(), payment.CheckoutParams{
		InvoiceID:  invoiceID,
		Amount:     decimal.RequireFromString("100.50"),
		Currency:   payment.CurrencyUSD,
		PayerEmail: "payer@example.com",
		SuccessURL: "https://app.example.com/paid",
		CancelURL:  "https://app.example.com/cancel",
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", sess.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", sess.URL)
	require.NotNil(t, sess.ExpiresAt)
	assert.Equal(t, int64(1767225600), sess.ExpiresAt.Unix())
}

func TestAdapter_CreateCheckoutSession_Errors(t *testing.T) {
	t.Run("NotConfigured", func(t *testing.T) {
		a := card.New(card.Config{}, nil)

		_, err := a.CreateCheckoutSession(context.Background(), payment.CheckoutParams{Currency: payment.CurrencyUSD})

		var cfgErr *payment.ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("UnsupportedCurrency", func(t *testing.T) {
		a := card.New(card.Config{SecretKey: "sk_test_123"}, nil)

		_, err := a.CreateCheckoutSession(context.Background(), payment.CheckoutParams{Currency: payment.CurrencyVND})

		var curErr *payment.UnsupportedCurrencyError
		assert.ErrorAs(t, err, &curErr)
	})

	t.Run("Upstream", func(t *testing.T) {
		a := newAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such price"}}`))
		})

		_, err := a.CreateCheckoutSession(context.Background(), payment.CheckoutParams{
			InvoiceID: uuid.New(),
			Amount:    decimal.NewFromInt(10),
			Currency:  payment.CurrencyEUR,
		})

		var apiErr *payment.ProviderAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.NotContains(t, apiErr.Error(), "No such price")
		assert.Contains(t, apiErr.Detail(), "No such price")
	})
}

func eventPayload(t *testing.T, eventType string, object map[string]any) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"id":      "evt_1",
		"object":  "event",
		"type":    eventType,
		"created": 1767225600,
		"data":    map[string]any{"object": object},
	})
	require.NoError(t, err)

	return body
}

func TestAdapter_VerifyWebhookSignature(t *testing.T) {
	body := eventPayload(t, "checkout.session.completed", map[string]any{"id": "cs_test_1", "object": "checkout.session"})

	t.Run("Valid", func(t *testing.T) {
		a := card.New(card.Config{WebhookSecret: whsec}, nil)
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: body, Secret: whsec})

		evt, err := a.VerifyWebhookSignature(context.Background(), body, signed.Header)
		require.NoError(t, err)

		assert.Equal(t, "evt_1", evt.ID)
		assert.Equal(t, "checkout.session.completed", evt.Type)
		assert.False(t, evt.TestMode)
		assert.JSONEq(t, `{"id":"cs_test_1","object":"checkout.session"}`, string(evt.Payload))
	})

	t.Run("WrongSecret", func(t *testing.T) {
		a := card.New(card.Config{WebhookSecret: whsec}, nil)
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: body, Secret: "whsec_other"})

		_, err := a.VerifyWebhookSignature(context.Background(), body, signed.Header)

		var sigErr *payment.SignatureVerificationError
		assert.ErrorAs(t, err, &sigErr)
	})

	t.Run("TamperedBody", func(t *testing.T) {
		a := card.New(card.Config{WebhookSecret: whsec}, nil)
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: body, Secret: whsec})
		tampered := eventPayload(t, "checkout.session.completed", map[string]any{"id": "cs_test_2"})

		_, err := a.VerifyWebhookSignature(context.Background(), tampered, signed.Header)

		var sigErr *payment.SignatureVerificationError
		assert.ErrorAs(t, err, &sigErr)
	})

	t.Run("NoSecretInProduction", func(t *testing.T) {
		a := card.New(card.Config{}, nil)

		_, err := a.VerifyWebhookSignature(context.Background(), body, "")

		var sigErr *payment.SignatureVerificationError
		assert.ErrorAs(t, err, &sigErr)
	})

	t.Run("UnsignedTestMode", func(t *testing.T) {
		a := card.New(card.Config{AllowUnsigned: true}, nil)

		evt, err := a.VerifyWebhookSignature(context.Background(), body, "")
		require.NoError(t, err)
		assert.True(t, evt.TestMode)
	})
}

func TestAdapter_ProcessWebhookEvent(t *testing.T) {
	invoiceID := uuid.New()

	type testCase struct {
		name      string
		eventType string
		object    map[string]any
		want      payment.Result
		wantErr   error
	}

	tests := []testCase{
		{
			name:      "SessionCompletedPaid",
			eventType: "checkout.session.completed",
			object: map[string]any{
				"id":             "cs_1",
				"object":         "checkout.session",
				"payment_intent": "pi_1",
				"payment_status": "paid",
				"amount_total":   10000,
				"currency":       "usd",
				"metadata":       map[string]string{"invoice_id": invoiceID.String()},
			},
			want: payment.Result{
				Success:       true,
				TransactionID: "pi_1",
				SessionID:     "cs_1",
				InvoiceID:     invoiceID,
				Amount:        decimal.NewFromInt(100),
				Currency:      payment.CurrencyUSD,
				Status:        payment.StatusCompleted,
			},
		},
		{
			name:      "SessionCompletedUnpaid",
			eventType: "checkout.session.completed",
			object: map[string]any{
				"id":                  "cs_2",
				"object":              "checkout.session",
				"payment_status":      "unpaid",
				"amount_total":        2500,
				"currency":            "eur",
				"client_reference_id": invoiceID.String(),
			},
			want: payment.Result{
				Success:       true,
				TransactionID: "cs_2",
				SessionID:     "cs_2",
				InvoiceID:     invoiceID,
				Amount:        decimal.NewFromInt(25),
				Currency:      payment.CurrencyEUR,
				Status:        payment.StatusPending,
			},
		},
		{
			name:      "SessionExpired",
			eventType: "checkout.session.expired",
			object: map[string]any{
				"id":                  "cs_3",
				"object":              "checkout.session",
				"amount_total":        100,
				"currency":            "usd",
				"client_reference_id": invoiceID.String(),
			},
			want: payment.Result{
				Success:       false,
				TransactionID: "cs_3",
				SessionID:     "cs_3",
				InvoiceID:     invoiceID,
				Amount:        decimal.NewFromInt(1),
				Currency:      payment.CurrencyUSD,
				Status:        payment.StatusFailed,
				Reason:        "checkout session expired",
			},
		},
		{
			name:      "IntentFailed",
			eventType: "payment_intent.payment_failed",
			object: map[string]any{
				"id":                 "pi_9",
				"object":             "payment_intent",
				"amount":             4200,
				"currency":           "usd",
				"metadata":           map[string]string{"invoice_id": invoiceID.String()},
				"last_payment_error": map[string]any{"message": "Your card was declined."},
			},
			want: payment.Result{
				Success:       false,
				TransactionID: "pi_9",
				InvoiceID:     invoiceID,
				Amount:        decimal.NewFromInt(42),
				Currency:      payment.CurrencyUSD,
				Status:        payment.StatusFailed,
				Reason:        "Your card was declined.",
			},
		},
		{
			name:      "ChargeRefunded",
			eventType: "charge.refunded",
			object: map[string]any{
				"id":              "ch_1",
				"object":          "charge",
				"payment_intent":  "pi_1",
				"amount":          5000,
				"amount_refunded": 5000,
				"refunded":        true,
				"currency":        "usd",
			},
			want: payment.Result{
				Success:       true,
				TransactionID: "pi_1",
				Amount:        decimal.NewFromInt(50),
				Currency:      payment.CurrencyUSD,
				Status:        payment.StatusRefunded,
			},
		},
		{
			name:      "ChargePartiallyRefunded",
			eventType: "charge.refunded",
			object: map[string]any{
				"id":              "ch_2",
				"object":          "charge",
				"payment_intent":  "pi_2",
				"amount":          10000,
				"amount_refunded": 2500,
				"refunded":        false,
				"currency":        "usd",
			},
			want: payment.Result{
				Success:       true,
				TransactionID: "pi_2",
				Amount:        decimal.NewFromInt(100),
				Currency:      payment.CurrencyUSD,
				Status:        payment.StatusCompleted,
			},
		},
		{
			name:      "Unhandled",
			eventType: "customer.created",
			object:    map[string]any{"id": "cus_1"},
			wantErr:   payment.ErrUnhandledEvent,
		},
	}

	a := card.New(card.Config{}, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.object)
			require.NoError(t, err)

			got, err := a.ProcessWebhookEvent(context.Background(), &payment.WebhookEvent{
				ID:      "evt_1",
				Type:    tt.eventType,
				Payload: raw,
			})

			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want.Success, got.Success)
			assert.Equal(t, tt.want.TransactionID, got.TransactionID)
			assert.Equal(t, tt.want.SessionID, got.SessionID)
			assert.Equal(t, tt.want.InvoiceID, got.InvoiceID)
			assert.True(t, tt.want.Amount.Equal(got.Amount), "amount %s", got.Amount)
			assert.Equal(t, tt.want.Currency, got.Currency)
			assert.Equal(t, tt.want.Status, got.Status)
			assert.Equal(t, tt.want.Reason, got.Reason)
		})
	}
}

func TestAdapter_GetPaymentStatus(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/v1/payment_intents/pi_1":
			_, _ = w.Write([]byte(`{"id":"pi_1","object":"payment_intent","status":"succeeded"}`))
		case "/v1/checkout/sessions/cs_1":
			_, _ = w.Write([]byte(`{"id":"cs_1","object":"checkout.session","status":"expired","payment_status":"unpaid"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"missing"}}`))
		}
	})

	got, err := a.GetPaymentStatus(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, got)

	got, err = a.GetPaymentStatus(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, got)

	_, err = a.GetPaymentStatus(context.Background(), "pi_missing")

	var apiErr *payment.ProviderAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestAdapter_RefundPayment(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/v1/payment_intents/pi_1":
			_, _ = w.Write([]byte(`{"id":"pi_1","object":"payment_intent","currency":"usd","status":"succeeded"}`))
		case "/v1/refunds":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "pi_1", r.PostForm.Get("payment_intent"))
			assert.Equal(t, "2550", r.PostForm.Get("amount"))

			_, _ = w.Write([]byte(`{"id":"re_1","object":"refund","amount":2550,"currency":"usd"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	amount := decimal.RequireFromString("25.50")

	rf, err := a.RefundPayment(context.Background(), "pi_1", &amount)
	require.NoError(t, err)

	assert.Equal(t, "re_1", rf.ID)
	assert.True(t, amount.Equal(rf.Amount))
}
