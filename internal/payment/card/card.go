// Package card implements the card-network adapter on top of Stripe Checkout.
package card

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

const signatureHeader = "Stripe-Signature"

var descriptor = payment.Descriptor{
	Name:                 payment.ProviderStripe,
	Currencies:           []payment.Currency{payment.CurrencyUSD, payment.CurrencyEUR},
	SupportsSubscription: true,
	SupportsRefund:       true,
}

type Config struct {
	SecretKey     string
	WebhookSecret string
	SessionTTL    time.Duration
	Timeout       time.Duration
	// AllowUnsigned accepts webhooks without a signature when no webhook
	// secret is configured. Never set in production.
	AllowUnsigned bool
	// APIBaseURL overrides the Stripe API endpoint (stripe-mock, tests).
	APIBaseURL string
}

type Adapter struct {
	cfg    Config
	api    *client.API
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	a := &Adapter{cfg: cfg, logger: logger.With("provider", payment.ProviderStripe)}

	if cfg.SecretKey != "" {
		a.api = client.New(cfg.SecretKey, newBackends(cfg))
	}

	return a
}

func newBackends(cfg Config) *stripe.Backends {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.APIBaseURL == "" {
		return stripe.NewBackends(httpClient)
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        httpClient,
		URL:               stripe.String(cfg.APIBaseURL),
		MaxNetworkRetries: stripe.Int64(0),
	})

	return &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
}

func (a *Adapter) Descriptor() payment.Descriptor { return descriptor }

func (a *Adapter) SupportsCurrency(c payment.Currency) bool { return descriptor.SupportsCurrency(c) }

func (a *Adapter) SignatureHeader() string { return signatureHeader }

func (a *Adapter) configured() error {
	if a.api == nil {
		return &payment.ConfigurationError{Provider: payment.ProviderStripe, Reason: "secret key is empty"}
	}

	return nil
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, p payment.CheckoutParams) (*payment.CheckoutSession, error) {
	if err := a.configured(); err != nil {
		return nil, err
	}

	if !a.SupportsCurrency(p.Currency) {
		return nil, &payment.UnsupportedCurrencyError{Currency: p.Currency}
	}

	metadata := map[string]string{"invoice_id": p.InvoiceID.String()}
	for k, v := range p.Metadata {
		metadata[k] = v
	}

	description := p.Description
	if description == "" {
		description = "Invoice " + p.InvoiceID.String()
	}

	expiresAt := time.Now().Add(a.cfg.SessionTTL)

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.InvoiceID.String()),
		ExpiresAt:         stripe.Int64(expiresAt.Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(string(p.Currency))),
					UnitAmount: stripe.Int64(payment.ToMinorUnits(p.Amount, p.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx

	if p.PayerEmail != "" {
		params.CustomerEmail = stripe.String(p.PayerEmail)
	}

	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	sess, err := a.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, apiError("create checkout session", err)
	}

	out := &payment.CheckoutSession{ID: sess.ID, URL: sess.URL}
	if sess.ExpiresAt > 0 {
		out.ExpiresAt = new(time.Unix(sess.ExpiresAt, 0).UTC())
	}

	return out, nil
}

func (a *Adapter) VerifyWebhookSignature(_ context.Context, rawBody []byte, signature string) (*payment.WebhookEvent, error) {
	if a.cfg.WebhookSecret == "" {
		if !a.cfg.AllowUnsigned {
			return nil, &payment.SignatureVerificationError{
				Provider: payment.ProviderStripe,
				Reason:   "webhook secret not configured",
			}
		}

		a.logger.Warn("ACCEPTING UNSIGNED WEBHOOK: no webhook secret configured, running outside production")

		var evt stripe.Event
		if err := json.Unmarshal(rawBody, &evt); err != nil {
			return nil, fmt.Errorf("%w: %v", payment.ErrMalformedEvent, err)
		}

		return toWebhookEvent(evt, true)
	}

	evt, err := webhook.ConstructEventWithOptions(rawBody, signature, a.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if isSignatureError(err) {
			return nil, &payment.SignatureVerificationError{Provider: payment.ProviderStripe, Reason: err.Error()}
		}

		return nil, fmt.Errorf("%w: %v", payment.ErrMalformedEvent, err)
	}

	return toWebhookEvent(evt, false)
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

func toWebhookEvent(evt stripe.Event, testMode bool) (*payment.WebhookEvent, error) {
	if evt.ID == "" || evt.Type == "" || evt.Data == nil || len(evt.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: missing id, type or data", payment.ErrMalformedEvent)
	}

	return &payment.WebhookEvent{
		ID:        evt.ID,
		Type:      string(evt.Type),
		Payload:   evt.Data.Raw,
		Timestamp: time.Unix(evt.Created, 0).UTC(),
		TestMode:  testMode,
	}, nil
}

func (a *Adapter) ProcessWebhookEvent(_ context.Context, event *payment.WebhookEvent) (*payment.Result, error) {
	switch event.Type {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Payload, &sess); err != nil || sess.ID == "" {
			return nil, fmt.Errorf("%w: checkout session payload", payment.ErrMalformedEvent)
		}

		return sessionResult(event.Type, &sess), nil

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Payload, &pi); err != nil || pi.ID == "" {
			return nil, fmt.Errorf("%w: payment intent payload", payment.ErrMalformedEvent)
		}

		return failedIntentResult(&pi), nil

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Payload, &ch); err != nil || ch.ID == "" {
			return nil, fmt.Errorf("%w: charge payload", payment.ErrMalformedEvent)
		}

		return refundedChargeResult(&ch), nil
	}

	return nil, fmt.Errorf("%w: %q", payment.ErrUnhandledEvent, event.Type)
}

func sessionResult(eventType string, sess *stripe.CheckoutSession) *payment.Result {
	cur := toCurrency(sess.Currency)
	res := &payment.Result{
		Success:       true,
		TransactionID: sess.ID,
		SessionID:     sess.ID,
		InvoiceID:     invoiceID(sess.Metadata["invoice_id"], sess.ClientReferenceID),
		Amount:        payment.FromMinorUnits(sess.AmountTotal, cur),
		Currency:      cur,
		Metadata:      map[string]string{"session_id": sess.ID},
	}

	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		res.TransactionID = sess.PaymentIntent.ID
		res.Metadata["payment_intent"] = sess.PaymentIntent.ID
	}

	switch eventType {
	case "checkout.session.completed":
		res.Status = payment.StatusPending
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			res.Status = payment.StatusCompleted
		}
	case "checkout.session.async_payment_succeeded":
		res.Status = payment.StatusCompleted
	case "checkout.session.async_payment_failed":
		res.Status = payment.StatusFailed
		res.Success = false
		res.Reason = "async payment failed"
	case "checkout.session.expired":
		res.Status = payment.StatusFailed
		res.Success = false
		res.Reason = "checkout session expired"
	}

	return res
}

func failedIntentResult(pi *stripe.PaymentIntent) *payment.Result {
	cur := toCurrency(pi.Currency)
	res := &payment.Result{
		Success:       false,
		TransactionID: pi.ID,
		InvoiceID:     invoiceID(pi.Metadata["invoice_id"], ""),
		Amount:        payment.FromMinorUnits(pi.Amount, cur),
		Currency:      cur,
		Status:        payment.StatusFailed,
		Metadata:      map[string]string{"payment_intent": pi.ID},
		Reason:        "payment failed",
	}

	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		res.Reason = pi.LastPaymentError.Msg
	}

	return res
}

// refundedChargeResult only moves the payment to refunded once the charge is
// fully refunded; partial refunds are recorded in metadata.
func refundedChargeResult(ch *stripe.Charge) *payment.Result {
	cur := toCurrency(ch.Currency)
	res := &payment.Result{
		Success:       true,
		TransactionID: ch.ID,
		InvoiceID:     invoiceID(ch.Metadata["invoice_id"], ""),
		Amount:        payment.FromMinorUnits(ch.Amount, cur),
		Currency:      cur,
		Status:        payment.StatusRefunded,
		Metadata: map[string]string{
			"charge":          ch.ID,
			"refunded_amount": payment.FromMinorUnits(ch.AmountRefunded, cur).String(),
		},
	}

	if !ch.Refunded {
		res.Status = payment.StatusCompleted
	}

	if ch.PaymentIntent != nil && ch.PaymentIntent.ID != "" {
		res.TransactionID = ch.PaymentIntent.ID
	}

	return res
}

func (a *Adapter) GetPaymentStatus(ctx context.Context, transactionID string) (payment.Status, error) {
	if err := a.configured(); err != nil {
		return "", err
	}

	if strings.HasPrefix(transactionID, "cs_") {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx

		sess, err := a.api.CheckoutSessions.Get(transactionID, params)
		if err != nil {
			return "", apiError("get checkout session", err)
		}

		return sessionStatus(sess), nil
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")

	pi, err := a.api.PaymentIntents.Get(transactionID, params)
	if err != nil {
		return "", apiError("get payment intent", err)
	}

	return intentStatus(pi), nil
}

func sessionStatus(sess *stripe.CheckoutSession) payment.Status {
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		return payment.StatusCompleted
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		return payment.StatusFailed
	}

	return payment.StatusPending
}

func intentStatus(pi *stripe.PaymentIntent) payment.Status {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		if pi.LatestCharge != nil && pi.LatestCharge.Refunded {
			return payment.StatusRefunded
		}

		return payment.StatusCompleted
	case stripe.PaymentIntentStatusCanceled:
		return payment.StatusFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return payment.StatusFailed
		}
	}

	return payment.StatusPending
}

func (a *Adapter) RefundPayment(ctx context.Context, transactionID string, amount *decimal.Decimal) (*payment.Refund, error) {
	if err := a.configured(); err != nil {
		return nil, err
	}

	intentID := transactionID
	if strings.HasPrefix(transactionID, "cs_") {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx

		sess, err := a.api.CheckoutSessions.Get(transactionID, params)
		if err != nil {
			return nil, apiError("get checkout session", err)
		}

		if sess.PaymentIntent == nil || sess.PaymentIntent.ID == "" {
			return nil, &payment.ProviderAPIError{
				Provider: payment.ProviderStripe,
				Op:       "refund",
				Err:      fmt.Errorf("session %s has no payment intent", transactionID),
			}
		}

		intentID = sess.PaymentIntent.ID
	}

	params := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
	params.Context = ctx

	if amount != nil {
		piParams := &stripe.PaymentIntentParams{}
		piParams.Context = ctx

		pi, err := a.api.PaymentIntents.Get(intentID, piParams)
		if err != nil {
			return nil, apiError("get payment intent", err)
		}

		params.Amount = stripe.Int64(payment.ToMinorUnits(*amount, toCurrency(pi.Currency)))
	}

	rf, err := a.api.Refunds.New(params)
	if err != nil {
		return nil, apiError("refund", err)
	}

	return &payment.Refund{
		ID:     rf.ID,
		Amount: payment.FromMinorUnits(rf.Amount, toCurrency(rf.Currency)),
	}, nil
}

func apiError(op string, err error) error {
	out := &payment.ProviderAPIError{Provider: payment.ProviderStripe, Op: op, Err: err}

	var se *stripe.Error
	if errors.As(err, &se) {
		out.StatusCode = se.HTTPStatusCode
	}

	return out
}

func toCurrency(c stripe.Currency) payment.Currency {
	return payment.Currency(strings.ToUpper(string(c)))
}

// invoiceID picks the first parseable candidate; uuid.Nil means uncorrelated.
func invoiceID(candidates ...string) uuid.UUID {
	for _, c := range candidates {
		if id, err := uuid.Parse(c); err == nil {
			return id
		}
	}

	return uuid.Nil
}
