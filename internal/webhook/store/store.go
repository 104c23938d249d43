package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrJamesThe3rd/payflow/internal/database"
	"github.com/MrJamesThe3rd/payflow/internal/payment"
	"github.com/MrJamesThe3rd/payflow/internal/webhook"
)

type Store struct {
	db database.DBTX
}

func New(db database.DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) RecordUnreconciled(ctx context.Context, e *webhook.UnreconciledEvent) (bool, error) {
	query := `
		INSERT INTO unreconciled_events (provider, event_id, event_type, transaction_id, reason, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (provider, event_id) DO NOTHING
		RETURNING id, created_at
	`

	var payload any
	if len(e.Payload) > 0 {
		payload = []byte(e.Payload)
	}

	err := s.db.QueryRowContext(ctx, query,
		string(e.Provider), e.EventID, e.EventType, e.TransactionID, e.Reason, payload,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("recording unreconciled event: %w", err)
	}

	return true, nil
}

func (s *Store) ListUnreconciled(ctx context.Context, limit int) ([]*webhook.UnreconciledEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, provider, event_id, event_type, transaction_id, reason, payload, created_at
		FROM unreconciled_events
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unreconciled events: %w", err)
	}
	defer rows.Close()

	var events []*webhook.UnreconciledEvent

	for rows.Next() {
		var (
			e        webhook.UnreconciledEvent
			provider string
			payload  []byte
		)

		if err := rows.Scan(
			&e.ID, &provider, &e.EventID, &e.EventType, &e.TransactionID, &e.Reason, &payload, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning unreconciled event: %w", err)
		}

		e.Provider = payment.Provider(provider)
		e.Payload = payload
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating unreconciled events: %w", err)
	}

	return events, nil
}
