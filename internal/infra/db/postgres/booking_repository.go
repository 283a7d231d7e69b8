package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/pricing"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type BookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const selectBooking = `SELECT id, listing_id, guest_id, check_in, check_out, guests, nights,
	nightly_amount, total_amount, currency, status, created_at, updated_at FROM bookings`

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(s scanner) (*domainbooking.Booking, error) {
	var (
		id, listingID, guestID, currency, status string
		checkIn, checkOut, createdAt, updatedAt  time.Time
		guests, nights                           int
		nightly, total                           int64
	)
	if err := s.Scan(&id, &listingID, &guestID, &checkIn, &checkOut, &guests, &nights,
		&nightly, &total, &currency, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	parsed, err := domainbooking.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return &domainbooking.Booking{
		ID:        domainbooking.BookingID(id),
		ListingID: domainlistings.ListingID(listingID),
		GuestID:   guestID,
		Range:     domainrange.DateRange{CheckIn: checkIn.UTC(), CheckOut: checkOut.UTC()},
		Guests:    guests,
		Price: pricing.Quote{
			Nights:  nights,
			Nightly: money.Money{Amount: nightly, Currency: currency},
			Total:   money.Money{Amount: total, Currency: currency},
		},
		Status:    parsed,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: updatedAt.UTC(),
	}, nil
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	b, err := scanBooking(conn(ctx, r.db).QueryRowContext(ctx, selectBooking+` WHERE id = $1`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b, err
}

// FindOverlapping matches active bookings with check_in < dr.CheckOut and
// check_out > dr.CheckIn.
func (r *BookingRepository) FindOverlapping(ctx context.Context, listingID domainlistings.ListingID, dr domainrange.DateRange, excluding domainbooking.BookingID) ([]*domainbooking.Booking, error) {
	active := make([]string, 0, len(domainbooking.ActiveStatuses))
	for _, s := range domainbooking.ActiveStatuses {
		active = append(active, string(s))
	}
	rows, err := conn(ctx, r.db).QueryContext(ctx, selectBooking+`
WHERE listing_id = $1 AND status = ANY($2) AND check_in < $3 AND check_out > $4 AND id <> $5
ORDER BY check_in`,
		string(listingID), pq.Array(active), dr.CheckOut.UTC(), dr.CheckIn.UTC(), string(excluding))
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO bookings (id, listing_id, guest_id, check_in, check_out, guests, nights,
	nightly_amount, total_amount, currency, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		string(b.ID), string(b.ListingID), b.GuestID, b.Range.CheckIn.UTC(), b.Range.CheckOut.UTC(),
		b.Guests, b.Price.Nights, b.Price.Nightly.Amount, b.Price.Total.Amount, b.Price.Total.Currency,
		string(b.Status), b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	if isUniqueViolation(err, "") {
		return fmt.Errorf("postgres: booking %s already exists: %w", b.ID, err)
	}
	return mapErr(err)
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, id domainbooking.BookingID, expected, next domainbooking.Status, at time.Time) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(next), at.UTC(), string(id), string(expected))
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *BookingRepository) ListExpirable(ctx context.Context, createdBefore time.Time, limit int) ([]*domainbooking.Booking, error) {
	query := selectBooking + ` WHERE status = $1 AND created_at <= $2 ORDER BY created_at`
	return r.list(ctx, query, limit, string(domainbooking.StatusPending), createdBefore.UTC())
}

func (r *BookingRepository) ListCompletable(ctx context.Context, checkOutBy time.Time, limit int) ([]*domainbooking.Booking, error) {
	query := selectBooking + ` WHERE status = $1 AND check_out <= $2 ORDER BY check_out`
	return r.list(ctx, query, limit, string(domainbooking.StatusConfirmed), checkOutBy.UTC())
}

func (r *BookingRepository) ListForParticipant(ctx context.Context, guestID string, listingIDs []domainlistings.ListingID, limit int) ([]*domainbooking.Booking, error) {
	ids := make([]string, 0, len(listingIDs))
	for _, id := range listingIDs {
		ids = append(ids, string(id))
	}
	query := selectBooking + ` WHERE (guest_id = $1 AND $1 <> '') OR listing_id = ANY($2) ORDER BY created_at DESC`
	return r.list(ctx, query, limit, guestID, pq.Array(ids))
}

func (r *BookingRepository) list(ctx context.Context, query string, limit int, args ...any) ([]*domainbooking.Booking, error) {
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func collectBookings(rows *sql.Rows) ([]*domainbooking.Booking, error) {
	defer rows.Close()
	var out []*domainbooking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
