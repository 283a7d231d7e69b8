package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	appoutbox "staybook/internal/app/outbox"
	infraoutbox "staybook/internal/infra/outbox"
)

const claimTimeout = 5 * time.Minute

type OutboxStore struct {
	db *sql.DB
}

func NewOutboxStore(db *sql.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	headers, err := json.Marshal(record.Headers)
	if err != nil {
		return err
	}
	_, err = conn(ctx, s.db).ExecContext(ctx, `
INSERT INTO app_outbox (id, name, payload, occurred_at, aggregate, headers, next_attempt_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.Name, record.Payload, record.OccurredAt.UTC(), record.Aggregate, headers, time.Now().UTC())
	return mapErr(err)
}

// Claim takes the oldest due record. SKIP LOCKED keeps concurrent relays off the
// same row.
func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
UPDATE app_outbox SET state = 'CLAIMED', claimed_by = $1, claimed_at = $2
WHERE id = (
	SELECT id FROM app_outbox
	WHERE (state IN ('NEW', 'FAILED') AND next_attempt_at <= $2)
	   OR (state = 'CLAIMED' AND claimed_at <= $3)
	ORDER BY next_attempt_at
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING id, name, payload, occurred_at, aggregate, headers, attempts`,
		workerID, now, now.Add(-claimTimeout))
	var (
		msg     infraoutbox.Message
		headers []byte
	)
	err := row.Scan(&msg.ID, &msg.Name, &msg.Payload, &msg.OccurredAt, &msg.Aggregate, &headers, &msg.Attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	msg.OccurredAt = msg.OccurredAt.UTC()
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &msg.Headers); err != nil {
			return nil, err
		}
	}
	return &msg, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE app_outbox SET state = 'SENT', sent_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE app_outbox SET state = 'FAILED', attempts = attempts + 1, next_attempt_at = $1, last_error = $2
WHERE id = $3`, next.UTC(), errMsg, id)
	return err
}

var (
	_ appoutbox.Outbox   = (*OutboxStore)(nil)
	_ infraoutbox.Source = (*OutboxStore)(nil)
)
