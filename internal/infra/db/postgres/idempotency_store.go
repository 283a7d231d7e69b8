package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"staybook/internal/app/middleware"
)

// IdempotencyStore keeps command results in app_idempotency. Expired rows are
// ignored on read and replaced on the next save under the same key.
type IdempotencyStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewIdempotencyStore(db *sql.DB, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = time.Hour * 24 * 7
	}
	return &IdempotencyStore{db: db, ttl: ttl, now: time.Now}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	rec := middleware.IdempotencyRecord{Key: key}
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, error, error_kind, occurred_at FROM app_idempotency WHERE key = $1 AND expires_at > $2`,
		key, s.now().UTC(),
	).Scan(&rec.Payload, &rec.Error, &rec.ErrorKind, &rec.OccurredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	rec.OccurredAt = rec.OccurredAt.UTC()
	return rec, true, nil
}

// Save keeps the first live record for a key; a concurrent duplicate loses.
func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_idempotency (key, payload, error, error_kind, occurred_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO UPDATE SET
			payload = EXCLUDED.payload, error = EXCLUDED.error, error_kind = EXCLUDED.error_kind,
			occurred_at = EXCLUDED.occurred_at, expires_at = EXCLUDED.expires_at
		WHERE app_idempotency.expires_at <= $7`,
		rec.Key, rec.Payload, rec.Error, rec.ErrorKind, rec.OccurredAt.UTC(), now.Add(s.ttl), now,
	)
	return err
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
