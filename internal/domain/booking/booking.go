package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staybook/internal/domain/listings"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
)

var (
	ErrBookingNotFound   = errors.New("booking: not found")
	ErrInvalidGuests     = errors.New("booking: guests count must be positive")
	ErrDateRangeInvalid  = errors.New("booking: date range invalid")
	ErrCapacityExceeded  = errors.New("booking: guests count exceeds listing capacity")
	ErrSlotUnavailable   = errors.New("booking: requested dates are not available")
	ErrInvalidTransition = errors.New("booking: invalid state transition")
)

type BookingID string

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// ActiveStatuses hold a listing's dates.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return s, nil
	}
	return "", fmt.Errorf("booking: unknown status %q", raw)
}

func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type Booking struct {
	ID        BookingID
	ListingID listings.ListingID
	GuestID   string
	Range     daterange.DateRange
	Guests    int
	Price     pricing.Quote
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
	events.EventRecorder
}

// Repository persists bookings. Status is only ever changed through UpdateStatus,
// a compare-and-set on the expected current status.
type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	// FindOverlapping returns the active (PENDING, CONFIRMED) bookings of the listing
	// overlapping dr, skipping excluding when it is not empty.
	FindOverlapping(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange, excluding BookingID) ([]*Booking, error)
	Insert(ctx context.Context, booking *Booking) error
	UpdateStatus(ctx context.Context, id BookingID, expected, next Status, at time.Time) (bool, error)
	// ListExpirable returns PENDING bookings created at or before createdBefore,
	// oldest first.
	ListExpirable(ctx context.Context, createdBefore time.Time, limit int) ([]*Booking, error)
	// ListCompletable returns CONFIRMED bookings whose check-out is at or before
	// checkOutBy, earliest check-out first.
	ListCompletable(ctx context.Context, checkOutBy time.Time, limit int) ([]*Booking, error)
	// ListForParticipant returns the bookings made by guestID or placed on one of
	// listingIDs, newest first.
	ListForParticipant(ctx context.Context, guestID string, listingIDs []listings.ListingID, limit int) ([]*Booking, error)
}

type CreateParams struct {
	ID        BookingID
	ListingID listings.ListingID
	GuestID   string
	Range     daterange.DateRange
	Guests    int
	Price     pricing.Quote
	CreatedAt time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	if params.Guests <= 0 {
		return nil, ErrInvalidGuests
	}
	if strings.TrimSpace(params.GuestID) == "" {
		return nil, errors.New("booking: guest id required")
	}
	if err := params.Range.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDateRangeInvalid, err)
	}
	if !params.Price.Total.IsPositive() {
		return nil, errors.New("booking: total must be positive")
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:        params.ID,
		ListingID: params.ListingID,
		GuestID:   params.GuestID,
		Range:     params.Range,
		Guests:    params.Guests,
		Price:     params.Price,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.Record(BookingRequested{
		BookingID:   b.ID,
		ListingID:   b.ListingID,
		GuestID:     b.GuestID,
		CheckIn:     b.Range.CheckIn,
		CheckOut:    b.Range.CheckOut,
		GuestsCount: b.Guests,
		Total:       b.Price.Total.Amount,
		Currency:    b.Price.Total.Currency,
		At:          now,
	})
	return b, nil
}

// Apply moves the booking along the transition table and records the matching
// event. A replayed trigger leaves the booking untouched and returns changed=false.
func (b *Booking) Apply(trigger Trigger, reason string, now time.Time) (Status, bool, error) {
	prev := b.Status
	next, changed, err := Next(prev, trigger)
	if err != nil || !changed {
		return prev, false, err
	}
	b.Status = next
	b.UpdatedAt = now.UTC()
	switch next {
	case StatusConfirmed:
		b.Record(BookingConfirmed{
			BookingID: b.ID,
			ListingID: b.ListingID,
			GuestID:   b.GuestID,
			CheckIn:   b.Range.CheckIn,
			CheckOut:  b.Range.CheckOut,
			Total:     b.Price.Total.Amount,
			Currency:  b.Price.Total.Currency,
			At:        b.UpdatedAt,
		})
	case StatusCancelled:
		b.Record(BookingCancelled{BookingID: b.ID, ListingID: b.ListingID, From: prev, Trigger: trigger, Reason: reason, At: b.UpdatedAt})
	case StatusCompleted:
		b.Record(BookingCompleted{BookingID: b.ID, ListingID: b.ListingID, At: b.UpdatedAt})
	}
	return prev, true, nil
}
