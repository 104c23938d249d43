// Package webhook turns raw provider deliveries into ledger changes and
// settlement, answering the provider without leaking internals.
package webhook

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/metrics"
	"github.com/MrJamesThe3rd/payflow/internal/notify"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
	"github.com/MrJamesThe3rd/payflow/internal/reconcile"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=webhook
type Repository interface {
	// RecordUnreconciled reports false when the same provider event was
	// already recorded.
	RecordUnreconciled(ctx context.Context, e *UnreconciledEvent) (bool, error)
	ListUnreconciled(ctx context.Context, limit int) ([]*UnreconciledEvent, error)
}

type Providers interface {
	GetProvider(name payment.Provider) (payment.Adapter, error)
}

type Reconciler interface {
	Apply(ctx context.Context, c ledger.Change, opts reconcile.Options) (*reconcile.Applied, error)
}

type Notifier interface {
	Enqueue(e notify.Event) bool
}

type Service struct {
	repo       Repository
	providers  Providers
	reconciler Reconciler
	notifier   Notifier
	logger     *slog.Logger
}

func NewService(repo Repository, providers Providers, reconciler Reconciler, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo:       repo,
		providers:  providers,
		reconciler: reconciler,
		notifier:   notifier,
		logger:     logger,
	}
}

// SignatureHeader names the HTTP header carrying the provider's signature.
func (s *Service) SignatureHeader(provider payment.Provider) (string, error) {
	adapter, err := s.providers.GetProvider(provider)
	if err != nil {
		return "", err
	}

	if h, ok := adapter.(payment.SignatureHeader); ok {
		return h.SignatureHeader(), nil
	}

	return "X-Signature", nil
}

func (s *Service) Unreconciled(ctx context.Context, limit int) ([]*UnreconciledEvent, error) {
	return s.repo.ListUnreconciled(ctx, limit)
}

// Ingest runs one delivery through verification, normalization and the
// ledger. It never returns an error; failures are folded into the Outcome.
func (s *Service) Ingest(ctx context.Context, provider payment.Provider, body []byte, signature string) *Outcome {
	out := s.ingest(ctx, provider, body, signature)
	metrics.RecordWebhook(string(provider), string(out.State))

	return out
}

func (s *Service) ingest(ctx context.Context, provider payment.Provider, body []byte, signature string) *Outcome {
	log := s.logger.With("provider", provider)

	adapter, err := s.providers.GetProvider(provider)
	if err != nil {
		log.Error("webhook for unregistered provider", "error", err)
		return rejected("unknown provider")
	}

	event, err := adapter.VerifyWebhookSignature(ctx, body, signature)
	if err != nil {
		var sigErr *payment.SignatureVerificationError
		var cfgErr *payment.ConfigurationError

		switch {
		case errors.As(err, &sigErr):
			log.Error("webhook signature verification failed", "error", err)
			return rejected("signature verification failed")
		case errors.As(err, &cfgErr):
			log.Error("webhook received but provider is not configured", "error", err)
			return rejected("webhook not configured")
		default:
			log.Error("webhook payload could not be parsed", "error", err)
			return rejected("unprocessable event")
		}
	}

	log = log.With("event_id", event.ID, "event_type", event.Type)

	status := StatusOK
	if event.TestMode {
		status = StatusTestMode
	}

	res, err := adapter.ProcessWebhookEvent(ctx, event)
	if err != nil {
		if errors.Is(err, payment.ErrUnhandledEvent) {
			log.Debug("webhook event type ignored")
			return &Outcome{State: StateIgnored, Status: status, Message: "event type ignored", Received: true}
		}

		log.Error("webhook event could not be normalized", "error", err)

		return &Outcome{State: StateRejected, Status: StatusError, Message: "unprocessable event", Received: true}
	}

	log = log.With("transaction_id", res.TransactionID, "invoice_id", res.InvoiceID)

	applied, err := s.reconciler.Apply(ctx, ledger.Change{
		TransactionID: res.TransactionID,
		SessionID:     res.SessionID,
		InvoiceID:     res.InvoiceID,
		Amount:        res.Amount,
		Currency:      res.Currency,
		Provider:      provider,
		Status:        res.Status,
		Metadata:      res.Metadata,
	}, reconcile.Options{})
	if err != nil {
		if errors.Is(err, ledger.ErrUncorrelated) {
			return s.unreconciled(ctx, log, provider, event, res, status, err.Error())
		}

		log.Error("applying webhook to ledger", "error", err)

		return &Outcome{State: StateFailed, Status: StatusError, Message: "temporary failure", Received: true, Retry: true}
	}

	if !applied.Outcome.Transitioned {
		log.Info("webhook redelivery or stale event, nothing changed",
			"current_status", applied.Outcome.Payment.Status)

		return &Outcome{State: StateDone, Status: status, Message: "already processed", Received: true}
	}

	log.Info("payment updated",
		"previous_status", applied.Outcome.Previous,
		"status", applied.Outcome.Payment.Status,
		"created", applied.Outcome.Created,
	)

	for _, e := range notifications(applied, res) {
		s.notifier.Enqueue(e)
	}

	return &Outcome{State: StateDone, Status: status, Message: "processed", Received: true}
}

func (s *Service) unreconciled(ctx context.Context, log *slog.Logger, provider payment.Provider, event *payment.WebhookEvent, res *payment.Result, status Status, reason string) *Outcome {
	rec := &UnreconciledEvent{
		Provider:      provider,
		EventID:       event.ID,
		EventType:     event.Type,
		TransactionID: res.TransactionID,
		Reason:        reason,
		Payload:       event.Payload,
	}

	inserted, err := s.repo.RecordUnreconciled(ctx, rec)
	if err != nil {
		log.Error("recording unreconciled event", "error", err)
		return &Outcome{State: StateFailed, Status: StatusError, Message: "temporary failure", Received: true, Retry: true}
	}

	if inserted {
		log.Warn("webhook not associated with any invoice, stored for manual recovery")
	}

	return &Outcome{State: StateIgnored, Status: status, Message: "event not associated with an invoice", Received: true}
}

func rejected(msg string) *Outcome {
	return &Outcome{State: StateRejected, Status: StatusError, Message: msg}
}

// notifications derives side effects from a ledger transition. Callers only
// invoke it when the row actually changed.
func notifications(a *reconcile.Applied, res *payment.Result) []notify.Event {
	p := a.Outcome.Payment
	base := notify.Event{
		Audience:      notify.AudienceAdmin,
		InvoiceID:     p.InvoiceID,
		TransactionID: p.TransactionID,
		Provider:      p.Provider,
		Amount:        p.Amount,
		Currency:      p.Currency,
	}

	var events []notify.Event

	switch p.Status {
	case payment.StatusCompleted:
		e := base
		e.Kind = notify.KindPaymentCompleted
		events = append(events, e)
	case payment.StatusFailed:
		e := base
		e.Kind = notify.KindPaymentFailed
		e.Reason = res.Reason
		events = append(events, e)
	case payment.StatusRefunded:
		e := base
		e.Kind = notify.KindPaymentRefunded
		events = append(events, e)
	}

	if a.InvoicePaid && a.Invoice != nil {
		e := base
		e.Kind = notify.KindInvoicePaid
		e.Audience = notify.AudienceClient
		e.Recipient = a.Invoice.ClientEmail
		e.Amount = a.Invoice.Amount
		e.Currency = a.Invoice.Currency
		events = append(events, e)
	}

	if a.Overpaid && a.Invoice != nil {
		e := base
		e.Kind = notify.KindOverpayment
		e.Amount = a.CompletedTotal.Sub(a.Invoice.Amount)
		e.Currency = a.Invoice.Currency
		events = append(events, e)
	}

	return events
}
