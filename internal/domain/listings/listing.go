package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var (
	ErrListingNotFound = errors.New("listings: not found")
	ErrOwnerRequired   = errors.New("listings: owner is required")
	ErrCapacity        = errors.New("listings: capacity must be at least 1")
	ErrNightlyRate     = errors.New("listings: nightly rate must be positive")
	ErrWindow          = errors.New("listings: availability window end must be after start")
)

type ListingID string
type OwnerID string

// Listing is the read-shared view of a bookable property. Bookings snapshot the
// nightly rate, so later edits never reach an existing booking.
type Listing struct {
	ID          ListingID
	Owner       OwnerID
	Title       string
	NightlyRate money.Money
	Capacity    int
	// Window bounds the bookable dates; a zero bound is open-ended.
	Window    daterange.DateRange
	Available bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ListingRepository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	ListByOwner(ctx context.Context, owner OwnerID) ([]*Listing, error)
}

type CreateListingParams struct {
	ID          ListingID
	Owner       OwnerID
	Title       string
	NightlyRate money.Money
	Capacity    int
	WindowStart time.Time
	WindowEnd   time.Time
	Available   bool
	Now         time.Time
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("listings: id is required")
	}
	if strings.TrimSpace(string(params.Owner)) == "" {
		return nil, ErrOwnerRequired
	}
	if params.Capacity < 1 {
		return nil, ErrCapacity
	}
	if !params.NightlyRate.IsPositive() || params.NightlyRate.Currency == "" {
		return nil, ErrNightlyRate
	}
	window := daterange.DateRange{
		CheckIn:  daterange.Date(params.WindowStart),
		CheckOut: daterange.Date(params.WindowEnd),
	}
	if !window.CheckIn.IsZero() && !window.CheckOut.IsZero() && !window.CheckOut.After(window.CheckIn) {
		return nil, ErrWindow
	}
	now := params.Now.UTC()
	return &Listing{
		ID:          params.ID,
		Owner:       params.Owner,
		Title:       strings.TrimSpace(params.Title),
		NightlyRate: params.NightlyRate,
		Capacity:    params.Capacity,
		Window:      window,
		Available:   params.Available,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// WindowContains reports whether dr lies inside the availability window.
// Open-ended bounds accept any date on that side.
func (l *Listing) WindowContains(dr daterange.DateRange) bool {
	if !l.Window.CheckIn.IsZero() && dr.CheckIn.Before(l.Window.CheckIn) {
		return false
	}
	if !l.Window.CheckOut.IsZero() && dr.CheckOut.After(l.Window.CheckOut) {
		return false
	}
	return true
}
