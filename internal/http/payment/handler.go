package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/admin"
	"github.com/MrJamesThe3rd/payflow/internal/http/auth"
	"github.com/MrJamesThe3rd/payflow/internal/http/httperr"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

type Ledger interface {
	Get(ctx context.Context, transactionID string) (*ledger.Payment, error)
	ListRecent(ctx context.Context, limit int) ([]*ledger.Payment, error)
}

type Admin interface {
	Status(ctx context.Context, transactionID string, provider payment.Provider) (*admin.StatusResult, error)
	Refund(ctx context.Context, transactionID string, amount *decimal.Decimal) (*admin.RefundResult, error)
}

type Handler struct {
	ledger Ledger
	admin  Admin
}

func NewHandler(ledger Ledger, admin Admin) *Handler {
	return &Handler{ledger: ledger, admin: admin}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{transactionID}", h.get)
	r.Get("/{transactionID}/status", h.status)
	r.With(auth.RequireRole(auth.RoleAdmin)).Post("/{transactionID}/refund", h.refund)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}

		limit = n
	}

	payments, err := h.ledger.ListRecent(r.Context(), limit)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponses(payments))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.ledger.Get(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	var provider payment.Provider
	if s := r.URL.Query().Get("provider"); s != "" {
		p, err := payment.ParseProvider(s)
		if err != nil {
			httperr.Write(w, r, err)
			return
		}

		provider = p
	}

	res, err := h.admin.Status(r.Context(), chi.URLParam(r, "transactionID"), provider)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		TransactionID: res.TransactionID,
		Provider:      res.Provider,
		Status:        res.Status,
	})
}

type refundRequest struct {
	// Amount is a decimal string in major units; empty refunds in full.
	Amount string `json:"amount,omitempty"`
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var amount *decimal.Decimal
	if req.Amount != "" {
		d, err := decimal.NewFromString(req.Amount)
		if err != nil {
			http.Error(w, "invalid amount", http.StatusBadRequest)
			return
		}

		amount = &d
	}

	res, err := h.admin.Refund(r.Context(), chi.URLParam(r, "transactionID"), amount)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, refundResponse{
		Success:  res.Success,
		RefundID: res.RefundID,
		Amount:   res.Amount,
		Reopened: res.Reopened,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
