// Package postgres stores listings, bookings and payments in PostgreSQL through
// lib/pq. Units of work serialize on transaction-scoped advisory locks.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const pendingPaymentIndex = "one_pending_payment_per_booking"

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	id              TEXT PRIMARY KEY,
	owner_id        TEXT        NOT NULL,
	title           TEXT        NOT NULL DEFAULT '',
	rate_amount     BIGINT      NOT NULL,
	rate_currency   TEXT        NOT NULL,
	capacity        INTEGER     NOT NULL,
	window_start    TIMESTAMPTZ,
	window_end      TIMESTAMPTZ,
	available       BOOLEAN     NOT NULL DEFAULT TRUE,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS bookings (
	id              TEXT PRIMARY KEY,
	listing_id      TEXT        NOT NULL REFERENCES listings (id),
	guest_id        TEXT        NOT NULL,
	check_in        TIMESTAMPTZ NOT NULL,
	check_out       TIMESTAMPTZ NOT NULL,
	guests          INTEGER     NOT NULL,
	nights          INTEGER     NOT NULL,
	nightly_amount  BIGINT      NOT NULL,
	total_amount    BIGINT      NOT NULL,
	currency        TEXT        NOT NULL,
	status          TEXT        NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bookings_overlap ON bookings (listing_id, status, check_in, check_out);
CREATE INDEX IF NOT EXISTS idx_bookings_status  ON bookings (status, created_at);
CREATE INDEX IF NOT EXISTS idx_bookings_checkout ON bookings (status, check_out);
CREATE INDEX IF NOT EXISTS idx_bookings_guest   ON bookings (guest_id, created_at DESC);

CREATE TABLE IF NOT EXISTS payments (
	id              TEXT PRIMARY KEY,
	booking_id      TEXT        NOT NULL REFERENCES bookings (id),
	reference       TEXT        NOT NULL UNIQUE,
	transaction_id  TEXT        NOT NULL DEFAULT '',
	checkout_url    TEXT        NOT NULL DEFAULT '',
	amount          BIGINT      NOT NULL,
	currency        TEXT        NOT NULL,
	status          TEXT        NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payments_booking ON payments (booking_id, created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS one_pending_payment_per_booking ON payments (booking_id) WHERE status = 'PENDING';

CREATE TABLE IF NOT EXISTS app_outbox (
	id              TEXT PRIMARY KEY,
	name            TEXT        NOT NULL,
	payload         BYTEA       NOT NULL,
	occurred_at     TIMESTAMPTZ NOT NULL,
	aggregate       TEXT        NOT NULL DEFAULT '',
	headers         JSONB       NOT NULL DEFAULT '{}',
	state           TEXT        NOT NULL DEFAULT 'NEW',
	attempts        INTEGER     NOT NULL DEFAULT 0,
	next_attempt_at TIMESTAMPTZ NOT NULL,
	claimed_by      TEXT        NOT NULL DEFAULT '',
	claimed_at      TIMESTAMPTZ,
	sent_at         TIMESTAMPTZ,
	last_error      TEXT        NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_outbox_due ON app_outbox (state, next_attempt_at);

CREATE TABLE IF NOT EXISTS app_inbox (
	event_id        TEXT        NOT NULL,
	consumer        TEXT        NOT NULL,
	received_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (event_id, consumer)
);

CREATE TABLE IF NOT EXISTS app_idempotency (
	key             TEXT PRIMARY KEY,
	payload         BYTEA,
	error           TEXT        NOT NULL DEFAULT '',
	error_kind      TEXT        NOT NULL DEFAULT '',
	occurred_at     TIMESTAMPTZ NOT NULL,
	expires_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_idempotency_expiry ON app_idempotency (expires_at);
`

// Open connects to dsn and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// Migrate creates the tables and indexes when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

func withTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// conn returns the transaction of the surrounding unit of work, or db outside one.
func conn(ctx context.Context, db *sql.DB) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok && tx != nil {
		return tx
	}
	return db
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}
