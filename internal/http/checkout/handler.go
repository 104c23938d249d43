package checkout

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/payflow/internal/checkout"
	"github.com/MrJamesThe3rd/payflow/internal/http/httperr"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

type Service interface {
	CreateSession(ctx context.Context, req checkout.Request) (*checkout.Session, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
}

type createRequest struct {
	InvoiceID  uuid.UUID `json:"invoice_id"`
	SuccessURL string    `json:"success_url,omitempty"`
	CancelURL  string    `json:"cancel_url,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	PayerEmail string    `json:"payer_email,omitempty"`
	PayerName  string    `json:"payer_name,omitempty"`
}

type sessionResponse struct {
	SessionID  string           `json:"session_id"`
	PaymentURL string           `json:"payment_url"`
	Provider   payment.Provider `json:"provider"`
	ExpiresAt  *time.Time       `json:"expires_at,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.InvoiceID == uuid.Nil {
		http.Error(w, "invoice_id is required", http.StatusBadRequest)
		return
	}

	var provider payment.Provider
	if req.Provider != "" {
		p, err := payment.ParseProvider(req.Provider)
		if err != nil {
			httperr.Write(w, r, err)
			return
		}

		provider = p
	}

	sess, err := h.svc.CreateSession(r.Context(), checkout.Request{
		InvoiceID:  req.InvoiceID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		Provider:   provider,
		PayerEmail: req.PayerEmail,
		PayerName:  req.PayerName,
	})
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(sessionResponse{
		SessionID:  sess.SessionID,
		PaymentURL: sess.PaymentURL,
		Provider:   sess.Provider,
		ExpiresAt:  sess.ExpiresAt,
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
