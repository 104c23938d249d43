package invoice

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/http/auth"
	"github.com/MrJamesThe3rd/payflow/internal/http/httperr"
	"github.com/MrJamesThe3rd/payflow/internal/invoice"
	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
	"github.com/MrJamesThe3rd/payflow/internal/reconcile"
)

type Invoices interface {
	Get(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error)
	List(ctx context.Context, filter invoice.ListFilter) ([]*invoice.Invoice, error)
}

type Payments interface {
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*ledger.Payment, error)
	SumCompleted(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
}

type Settler interface {
	Settle(ctx context.Context, invoiceID uuid.UUID) (*reconcile.Applied, error)
}

type Handler struct {
	invoices Invoices
	payments Payments
	settler  Settler
}

func NewHandler(invoices Invoices, payments Payments, settler Settler) *Handler {
	return &Handler{invoices: invoices, payments: payments, settler: settler}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/payments", h.listPayments)
	r.With(auth.RequireRole(auth.RoleAdmin)).Post("/{id}/settle", h.settle)
}

type invoiceResponse struct {
	ID             uuid.UUID        `json:"id"`
	Amount         decimal.Decimal  `json:"amount"`
	Currency       payment.Currency `json:"currency"`
	Status         invoice.Status   `json:"status"`
	DueDate        *time.Time       `json:"due_date,omitempty"`
	PaidAt         *time.Time       `json:"paid_at,omitempty"`
	ClientName     string           `json:"client_name,omitempty"`
	ClientEmail    string           `json:"client_email,omitempty"`
	Description    string           `json:"description,omitempty"`
	CompletedTotal *decimal.Decimal `json:"completed_total,omitempty"`
}

func toResponse(inv *invoice.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:          inv.ID,
		Amount:      inv.Amount,
		Currency:    inv.Currency,
		Status:      inv.Status,
		DueDate:     inv.DueDate,
		PaidAt:      inv.PaidAt,
		ClientName:  inv.ClientName,
		ClientEmail: inv.ClientEmail,
		Description: inv.Description,
	}
}

type paymentResponse struct {
	TransactionID string           `json:"transaction_id"`
	Amount        decimal.Decimal  `json:"amount"`
	Currency      payment.Currency `json:"currency"`
	Provider      payment.Provider `json:"provider"`
	Status        payment.Status   `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid invoice id", http.StatusBadRequest)
		return uuid.Nil, false
	}

	return id, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var filter invoice.ListFilter

	if s := r.URL.Query().Get("status"); s != "" {
		status := invoice.Status(s)
		switch status {
		case invoice.StatusDraft, invoice.StatusSent, invoice.StatusPaid, invoice.StatusOverdue, invoice.StatusCancelled:
			filter.Status = &status
		default:
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
	}

	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}

		filter.Limit = n
	}

	invoices, err := h.invoices.List(r.Context(), filter)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	resp := make([]invoiceResponse, len(invoices))
	for i, inv := range invoices {
		resp[i] = toResponse(inv)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	inv, err := h.invoices.Get(r.Context(), id)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	total, err := h.payments.SumCompleted(r.Context(), id)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	resp := toResponse(inv)
	resp.CompletedTotal = &total

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if _, err := h.invoices.Get(r.Context(), id); err != nil {
		httperr.Write(w, r, err)
		return
	}

	payments, err := h.payments.ListByInvoice(r.Context(), id)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = paymentResponse{
			TransactionID: p.TransactionID,
			Amount:        p.Amount,
			Currency:      p.Currency,
			Provider:      p.Provider,
			Status:        p.Status,
			CreatedAt:     p.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type settleResponse struct {
	Status         invoice.Status  `json:"status"`
	CompletedTotal decimal.Decimal `json:"completed_total"`
	InvoicePaid    bool            `json:"invoice_paid"`
	Overpaid       bool            `json:"overpaid"`
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	applied, err := h.settler.Settle(r.Context(), id)
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	resp := settleResponse{
		CompletedTotal: applied.CompletedTotal,
		InvoicePaid:    applied.InvoicePaid,
		Overpaid:       applied.Overpaid,
	}

	if applied.Invoice != nil {
		resp.Status = applied.Invoice.Status
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
