package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/payflow/internal/ledger"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

type paymentResponse struct {
	ID            uuid.UUID         `json:"id"`
	TransactionID string            `json:"transaction_id"`
	InvoiceID     uuid.UUID         `json:"invoice_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      payment.Currency  `json:"currency"`
	Provider      payment.Provider  `json:"provider"`
	Status        payment.Status    `json:"status"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
}

func toResponse(p *ledger.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		TransactionID: p.TransactionID,
		InvoiceID:     p.InvoiceID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Provider:      p.Provider,
		Status:        p.Status,
		Metadata:      p.Metadata,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toResponses(payments []*ledger.Payment) []paymentResponse {
	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toResponse(p)
	}

	return resp
}

type statusResponse struct {
	TransactionID string           `json:"transaction_id"`
	Provider      payment.Provider `json:"provider"`
	Status        payment.Status   `json:"status"`
}

type refundResponse struct {
	Success  bool            `json:"success"`
	RefundID string          `json:"refund_id"`
	Amount   decimal.Decimal `json:"amount"`
	Reopened bool            `json:"invoice_reopened"`
}
