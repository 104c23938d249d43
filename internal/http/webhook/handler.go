package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/payflow/internal/payment"
	"github.com/MrJamesThe3rd/payflow/internal/webhook"
)

type Service interface {
	SignatureHeader(provider payment.Provider) (string, error)
	Ingest(ctx context.Context, provider payment.Provider, body []byte, signature string) *webhook.Outcome
	Unreconciled(ctx context.Context, limit int) ([]*webhook.UnreconciledEvent, error)
}

type Handler struct {
	svc      Service
	maxBytes int64
}

func NewHandler(svc Service, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}

	return &Handler{svc: svc, maxBytes: maxBytes}
}

// Routes mounts the provider-facing endpoints. They carry no auth; the
// signature check is the authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/{provider}", h.receive)
}

// AdminRoutes mounts the operator views of stored webhook leftovers.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/unreconciled", h.listUnreconciled)
}

type outcomeResponse struct {
	Received bool           `json:"received"`
	Status   webhook.Status `json:"status"`
	Message  string         `json:"message"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	provider, err := payment.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}

	header, err := h.svc.SignatureHeader(provider)
	if err != nil {
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}

	// The signature covers these exact bytes, never a re-encoding.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}

		http.Error(w, "could not read body", http.StatusBadRequest)

		return
	}

	out := h.svc.Ingest(r.Context(), provider, body, r.Header.Get(header))

	code := http.StatusOK
	if out.Retry {
		code = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(outcomeResponse{
		Received: out.Received,
		Status:   out.Status,
		Message:  out.Message,
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type unreconciledResponse struct {
	ID            string          `json:"id"`
	Provider      string          `json:"provider"`
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Reason        string          `json:"reason"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (h *Handler) listUnreconciled(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}

		limit = n
	}

	events, err := h.svc.Unreconciled(r.Context(), limit)
	if err != nil {
		slog.Error("listing unreconciled events", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	resp := make([]unreconciledResponse, len(events))
	for i, e := range events {
		resp[i] = unreconciledResponse{
			ID:            e.ID.String(),
			Provider:      string(e.Provider),
			EventID:       e.EventID,
			EventType:     e.EventType,
			TransactionID: e.TransactionID,
			Reason:        e.Reason,
			Payload:       e.Payload,
			CreatedAt:     e.CreatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
