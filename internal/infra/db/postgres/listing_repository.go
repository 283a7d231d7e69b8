package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domainlistings "staybook/internal/domain/listings"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type ListingRepository struct {
	db *sql.DB
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

const selectListing = `SELECT id, owner_id, title, rate_amount, rate_currency, capacity,
	window_start, window_end, available, created_at, updated_at FROM listings`

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	l, err := scanListing(conn(ctx, r.db).QueryRowContext(ctx, selectListing+` WHERE id = $1`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainlistings.ErrListingNotFound
	}
	return l, err
}

func (r *ListingRepository) ListByOwner(ctx context.Context, owner domainlistings.OwnerID) ([]*domainlistings.Listing, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, selectListing+` WHERE owner_id = $1 ORDER BY id`, string(owner))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domainlistings.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanListing(s scanner) (*domainlistings.Listing, error) {
	var (
		l                      domainlistings.Listing
		owner, listingID       string
		windowStart, windowEnd sql.NullTime
		createdAt, updatedAt   time.Time
		rateAmount             int64
		rateCurrency           string
	)
	err := s.Scan(&listingID, &owner, &l.Title, &rateAmount, &rateCurrency, &l.Capacity,
		&windowStart, &windowEnd, &l.Available, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	l.ID = domainlistings.ListingID(listingID)
	l.Owner = domainlistings.OwnerID(owner)
	l.NightlyRate = money.Money{Amount: rateAmount, Currency: rateCurrency}
	l.Window = domainrange.DateRange{CheckIn: fromNullTime(windowStart), CheckOut: fromNullTime(windowEnd)}
	l.CreatedAt = createdAt.UTC()
	l.UpdatedAt = updatedAt.UTC()
	return &l, nil
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlistings.Listing) error {
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = time.Now().UTC()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = l.UpdatedAt
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO listings (id, owner_id, title, rate_amount, rate_currency, capacity,
	window_start, window_end, available, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
	owner_id = EXCLUDED.owner_id,
	title = EXCLUDED.title,
	rate_amount = EXCLUDED.rate_amount,
	rate_currency = EXCLUDED.rate_currency,
	capacity = EXCLUDED.capacity,
	window_start = EXCLUDED.window_start,
	window_end = EXCLUDED.window_end,
	available = EXCLUDED.available,
	updated_at = EXCLUDED.updated_at`,
		string(l.ID), string(l.Owner), l.Title, l.NightlyRate.Amount, l.NightlyRate.Currency, l.Capacity,
		nullTime(l.Window.CheckIn), nullTime(l.Window.CheckOut), l.Available, l.CreatedAt.UTC(), l.UpdatedAt.UTC())
	return mapErr(err)
}

var _ domainlistings.ListingRepository = (*ListingRepository)(nil)
