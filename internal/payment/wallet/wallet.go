// Package wallet implements the regional e-wallet adapter. A single Adapter
// serves every regional sub-provider; the sub-provider only changes the
// endpoint, credentials, webhook header and transaction id prefix.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

const maxErrorBody = 4 << 10

var signatureHeaders = map[payment.Provider]string{
	payment.ProviderMoMo:    "X-Momo-Signature",
	payment.ProviderZaloPay: "X-Zalopay-Signature",
}

type Config struct {
	Provider      payment.Provider
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
	SessionTTL    time.Duration
	// AllowUnsigned accepts webhooks without a signature when no webhook
	// secret is configured. Never set in production.
	AllowUnsigned bool
}

type Adapter struct {
	cfg      Config
	client   *http.Client
	outbound Signer
	inbound  Signer
	logger   *slog.Logger
	now      func() time.Time
}

func New(cfg Config, logger *slog.Logger) (*Adapter, error) {
	if !cfg.Provider.IsRegional() {
		return nil, &payment.UnknownProviderError{Name: string(cfg.Provider)}
	}

	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Adapter{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		outbound: NewSigner(cfg.APIKey),
		inbound:  NewSigner(cfg.WebhookSecret),
		logger:   logger.With("provider", cfg.Provider),
		now:      time.Now,
	}, nil
}

func (a *Adapter) Descriptor() payment.Descriptor {
	return payment.Descriptor{
		Name:       a.cfg.Provider,
		Currencies: []payment.Currency{payment.CurrencyVND},
	}
}

func (a *Adapter) SupportsCurrency(c payment.Currency) bool {
	return a.Descriptor().SupportsCurrency(c)
}

func (a *Adapter) SignatureHeader() string { return signatureHeaders[a.cfg.Provider] }

func (a *Adapter) configured() error {
	switch {
	case a.cfg.BaseURL == "":
		return &payment.ConfigurationError{Provider: a.cfg.Provider, Reason: "base URL is empty"}
	case a.cfg.APIKey == "":
		return &payment.ConfigurationError{Provider: a.cfg.Provider, Reason: "API key is empty"}
	}

	return nil
}

// TransactionID builds "<subprovider>_<invoiceID>_<unixMillis>".
func TransactionID(p payment.Provider, invoiceID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", p, invoiceID, at.UnixMilli())
}

// ParseTransactionID is the inverse of TransactionID.
func ParseTransactionID(id string) (payment.Provider, uuid.UUID, error) {
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		return "", uuid.Nil, fmt.Errorf("transaction id %q: expected 3 parts", id)
	}

	p, err := payment.ParseProvider(parts[0])
	if err != nil || !p.IsRegional() {
		return "", uuid.Nil, fmt.Errorf("transaction id %q: unknown prefix", id)
	}

	invoiceID, err := uuid.Parse(parts[1])
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("transaction id %q: %w", id, err)
	}

	if _, err := strconv.ParseInt(parts[2], 10, 64); err != nil {
		return "", uuid.Nil, fmt.Errorf("transaction id %q: bad timestamp", id)
	}

	return p, invoiceID, nil
}

type payer struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type checkoutRequest struct {
	TransactionID string            `json:"transaction_id"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Description   string            `json:"description,omitempty"`
	Payer         payer             `json:"payer"`
	ReturnURL     string            `json:"return_url"`
	CancelURL     string            `json:"cancel_url"`
	ExpiresAt     time.Time         `json:"expires_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type checkoutResponse struct {
	CheckoutURL   string     `json:"checkout_url"`
	TransactionID string     `json:"transaction_id"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

func (a *Adapter) CreateCheckoutSession(ctx context.Context, p payment.CheckoutParams) (*payment.CheckoutSession, error) {
	if err := a.configured(); err != nil {
		return nil, err
	}

	if !a.SupportsCurrency(p.Currency) {
		return nil, &payment.UnsupportedCurrencyError{Currency: p.Currency}
	}

	now := a.now()
	txID := TransactionID(a.cfg.Provider, p.InvoiceID, now)

	metadata := map[string]string{"invoice_id": p.InvoiceID.String()}
	for k, v := range p.Metadata {
		metadata[k] = v
	}

	reqBody := checkoutRequest{
		TransactionID: txID,
		Amount:        payment.ToMinorUnits(p.Amount, p.Currency),
		Currency:      string(p.Currency),
		Description:   p.Description,
		Payer:         payer{Email: p.PayerEmail, Name: p.PayerName},
		ReturnURL:     p.SuccessURL,
		CancelURL:     p.CancelURL,
		ExpiresAt:     now.Add(a.cfg.SessionTTL).UTC(),
		Metadata:      metadata,
	}

	var resp checkoutResponse
	if err := a.do(ctx, "create checkout session", http.MethodPost, "/v1/checkouts", reqBody, &resp); err != nil {
		return nil, err
	}

	if resp.CheckoutURL == "" {
		return nil, &payment.ProviderAPIError{
			Provider: a.cfg.Provider,
			Op:       "create checkout session",
			Err:      errors.New("response has no checkout_url"),
		}
	}

	sess := &payment.CheckoutSession{ID: txID, URL: resp.CheckoutURL, ExpiresAt: resp.ExpiresAt}
	if resp.TransactionID != "" {
		sess.ID = resp.TransactionID
	}

	if sess.ExpiresAt == nil {
		sess.ExpiresAt = new(reqBody.ExpiresAt)
	}

	return sess, nil
}

type notification struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	TransactionID string            `json:"transaction_id"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	Reason        string            `json:"reason"`
	Metadata      map[string]string `json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (a *Adapter) VerifyWebhookSignature(_ context.Context, rawBody []byte, signature string) (*payment.WebhookEvent, error) {
	testMode := false

	if a.cfg.WebhookSecret == "" {
		if !a.cfg.AllowUnsigned {
			return nil, &payment.SignatureVerificationError{
				Provider: a.cfg.Provider,
				Reason:   "webhook secret not configured",
			}
		}

		a.logger.Warn("ACCEPTING UNSIGNED WEBHOOK: no webhook secret configured, running outside production")

		testMode = true
	} else if !a.inbound.Verify(rawBody, signature) {
		return nil, &payment.SignatureVerificationError{Provider: a.cfg.Provider, Reason: "signature mismatch"}
	}

	var n notification
	if err := json.Unmarshal(rawBody, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrMalformedEvent, err)
	}

	if n.EventID == "" || n.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_id or event_type", payment.ErrMalformedEvent)
	}

	return &payment.WebhookEvent{
		ID:        n.EventID,
		Type:      n.EventType,
		Payload:   rawBody,
		Timestamp: n.CreatedAt,
		TestMode:  testMode,
	}, nil
}

var eventStatuses = map[string]payment.Status{
	"payment.succeeded": payment.StatusCompleted,
	"payment.failed":    payment.StatusFailed,
	"payment.pending":   payment.StatusPending,
	"payment.refunded":  payment.StatusRefunded,
}

func (a *Adapter) ProcessWebhookEvent(_ context.Context, event *payment.WebhookEvent) (*payment.Result, error) {
	status, ok := eventStatuses[event.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", payment.ErrUnhandledEvent, event.Type)
	}

	var n notification
	if err := json.Unmarshal(event.Payload, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrMalformedEvent, err)
	}

	if n.TransactionID == "" {
		return nil, fmt.Errorf("%w: missing transaction_id", payment.ErrMalformedEvent)
	}

	invoiceID, err := a.invoiceFor(&n)
	if err != nil {
		return nil, err
	}

	cur := payment.Currency(strings.ToUpper(n.Currency))
	if cur == "" {
		cur = payment.CurrencyVND
	}

	res := &payment.Result{
		Success:       status != payment.StatusFailed,
		TransactionID: n.TransactionID,
		SessionID:     n.TransactionID,
		InvoiceID:     invoiceID,
		Amount:        payment.FromMinorUnits(n.Amount, cur),
		Currency:      cur,
		Status:        status,
		Metadata:      n.Metadata,
		Reason:        n.Reason,
	}

	if status == payment.StatusFailed && res.Reason == "" {
		res.Reason = "payment failed"
	}

	return res, nil
}

// invoiceFor prefers the invoice id echoed back in the notification metadata
// and falls back to the one embedded in our transaction id. A notification
// carrying neither yields uuid.Nil and is left for the ledger to correlate by
// transaction id.
func (a *Adapter) invoiceFor(n *notification) (uuid.UUID, error) {
	prefix, embedded, parseErr := ParseTransactionID(n.TransactionID)
	if parseErr == nil && prefix != a.cfg.Provider {
		return uuid.Nil, fmt.Errorf("%w: transaction %s belongs to %s", payment.ErrMalformedEvent, n.TransactionID, prefix)
	}

	if id, err := uuid.Parse(n.Metadata["invoice_id"]); err == nil {
		return id, nil
	}

	if parseErr != nil {
		a.logger.Debug("transaction id does not embed an invoice",
			slog.String("transaction_id", n.TransactionID),
			slog.String("error", parseErr.Error()),
		)

		return uuid.Nil, nil
	}

	return embedded, nil
}

type transactionResponse struct {
	Status string `json:"status"`
}

func (a *Adapter) GetPaymentStatus(ctx context.Context, transactionID string) (payment.Status, error) {
	if err := a.configured(); err != nil {
		return "", err
	}

	var resp transactionResponse
	if err := a.do(ctx, "get payment status", http.MethodGet, "/v1/transactions/"+url.PathEscape(transactionID), nil, &resp); err != nil {
		return "", err
	}

	switch resp.Status {
	case "succeeded":
		return payment.StatusCompleted, nil
	case "failed", "expired":
		return payment.StatusFailed, nil
	case "refunded":
		return payment.StatusRefunded, nil
	}

	return payment.StatusPending, nil
}

func (a *Adapter) RefundPayment(_ context.Context, _ string, _ *decimal.Decimal) (*payment.Refund, error) {
	return nil, &payment.UnsupportedOperationError{Provider: a.cfg.Provider, Op: "refund"}
}

func (a *Adapter) do(ctx context.Context, op, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Signature", a.outbound.Sign(body))

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return &payment.ProviderAPIError{Provider: a.cfg.Provider, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return &payment.ProviderAPIError{
			Provider:   a.cfg.Provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &payment.ProviderAPIError{
			Provider:   a.cfg.Provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decoding response: %w", err),
		}
	}

	return nil
}
