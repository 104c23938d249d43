package statement

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/http/httperr"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
	"github.com/MrJamesThe3rd/payflow/internal/statement"
)

const maxUpload = 10 << 20

type Checker interface {
	Providers() []payment.Provider
	Check(ctx context.Context, provider payment.Provider, r io.Reader) (*statement.Report, error)
}

type Handler struct {
	checker Checker
}

func NewHandler(checker Checker) *Handler {
	return &Handler{checker: checker}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.providers)
	r.Post("/{provider}", h.check)
}

type lineResponse struct {
	Row           int              `json:"row"`
	TransactionID string           `json:"transaction_id"`
	Amount        decimal.Decimal  `json:"amount"`
	Currency      payment.Currency `json:"currency"`
	Status        payment.Status   `json:"status"`
	Date          *time.Time       `json:"date,omitempty"`
}

type ledgerResponse struct {
	Amount   decimal.Decimal  `json:"amount"`
	Currency payment.Currency `json:"currency"`
	Provider payment.Provider `json:"provider"`
	Status   payment.Status   `json:"status"`
}

type findingResponse struct {
	Kind      statement.Kind  `json:"kind"`
	Statement lineResponse    `json:"statement"`
	Ledger    *ledgerResponse `json:"ledger,omitempty"`
}

type reportResponse struct {
	Provider payment.Provider  `json:"provider"`
	Lines    int               `json:"lines"`
	Matched  int               `json:"matched"`
	Clean    bool              `json:"clean"`
	Findings []findingResponse `json:"findings"`
}

func toReportResponse(r *statement.Report) reportResponse {
	resp := reportResponse{
		Provider: r.Provider,
		Lines:    r.Lines,
		Matched:  r.Matched,
		Clean:    r.Clean(),
		Findings: make([]findingResponse, 0, len(r.Findings)),
	}

	for _, f := range r.Findings {
		fr := findingResponse{
			Kind: f.Kind,
			Statement: lineResponse{
				Row:           f.Line.Row,
				TransactionID: f.Line.TransactionID,
				Amount:        f.Line.Amount,
				Currency:      f.Line.Currency,
				Status:        f.Line.Status,
			},
		}

		if !f.Line.Date.IsZero() {
			fr.Statement.Date = new(f.Line.Date)
		}

		if p := f.Payment; p != nil {
			fr.Ledger = &ledgerResponse{
				Amount:   p.Amount,
				Currency: p.Currency,
				Provider: p.Provider,
				Status:   p.Status,
			}
		}

		resp.Findings = append(resp.Findings, fr)
	}

	return resp
}

func (h *Handler) providers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]payment.Provider{"providers": h.checker.Providers()})
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	provider, err := payment.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	report, err := h.checker.Check(r.Context(), provider, file)

	switch {
	case errors.Is(err, statement.ErrNoParser):
		http.Error(w, "no statement format for "+string(provider), http.StatusNotFound)
		return
	case errors.Is(err, statement.ErrUnreadable):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		httperr.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toReportResponse(report))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
