package webhook

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/payflow/internal/payment"
)

// State is where a delivery ended up in the ingest pipeline.
type State string

const (
	StateReceived      State = "received"
	StateVerified      State = "verified"
	StateNormalized    State = "normalized"
	StateLedgerApplied State = "ledger_applied"
	StateDone          State = "done"
	StateRejected      State = "rejected"
	StateIgnored       State = "ignored"
	StateFailed        State = "failed"
)

// Status is the coarse verdict reported back to the provider.
type Status string

const (
	StatusOK       Status = "ok"
	StatusTestMode Status = "test_mode"
	StatusError    Status = "error"
)

// Outcome describes how one delivery was handled. Message is safe to return
// to the provider.
type Outcome struct {
	State    State
	Status   Status
	Message  string
	Received bool
	// Retry is set when processing failed for a reason a redelivery could
	// fix, such as a storage outage.
	Retry bool
}

// UnreconciledEvent is an authentic event that could not be tied to any
// invoice, kept for manual recovery.
type UnreconciledEvent struct {
	ID            uuid.UUID
	Provider      payment.Provider
	EventID       string
	EventType     string
	TransactionID string
	Reason        string
	Payload       json.RawMessage
	CreatedAt     time.Time
}
