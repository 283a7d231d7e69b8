package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type sliceFinder struct {
	items []*booking.Booking
	err   error
}

func (f sliceFinder) FindOverlapping(_ context.Context, listingID listings.ListingID, dr daterange.DateRange, excluding booking.BookingID) ([]*booking.Booking, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*booking.Booking
	for _, b := range f.items {
		if b.ListingID == listingID && b.Range.Overlaps(dr) {
			out = append(out, b)
		}
	}
	return out, nil
}

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func mustRange(t *testing.T, from, to int) daterange.DateRange {
	t.Helper()
	dr, err := daterange.New(day(from), day(to))
	require.NoError(t, err)
	return dr
}

func testListing(t *testing.T) *listings.Listing {
	t.Helper()
	l, err := listings.NewListing(listings.CreateListingParams{
		ID:          "listing-1",
		Owner:       "owner-1",
		NightlyRate: money.Must(10000, "ETB"),
		Capacity:    2,
		WindowStart: day(1),
		WindowEnd:   day(30),
		Available:   true,
		Now:         day(1),
	})
	require.NoError(t, err)
	return l
}

func existing(id string, status booking.Status, dr daterange.DateRange) *booking.Booking {
	return &booking.Booking{ID: booking.BookingID(id), ListingID: "listing-1", Range: dr, Guests: 1, Status: status}
}

func TestCheckerAllowsBackToBackStays(t *testing.T) {
	checker := Checker{Bookings: sliceFinder{items: []*booking.Booking{
		existing("a", booking.StatusConfirmed, mustRange(t, 1, 3)),
	}}}
	ok, err := checker.IsAvailable(context.Background(), testListing(t), mustRange(t, 3, 5), 2, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckerRejectsOverlapWithActiveBooking(t *testing.T) {
	checker := Checker{Bookings: sliceFinder{items: []*booking.Booking{
		existing("a", booking.StatusPending, mustRange(t, 1, 3)),
	}}}
	err := checker.Check(context.Background(), testListing(t), mustRange(t, 2, 4), 1, "")
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)
}

func TestCheckerIgnoresInactiveAndExcludedBookings(t *testing.T) {
	checker := Checker{Bookings: sliceFinder{items: []*booking.Booking{
		existing("cancelled", booking.StatusCancelled, mustRange(t, 1, 5)),
		existing("completed", booking.StatusCompleted, mustRange(t, 1, 5)),
		existing("self", booking.StatusConfirmed, mustRange(t, 1, 5)),
	}}}
	ok, err := checker.IsAvailable(context.Background(), testListing(t), mustRange(t, 2, 4), 1, "self")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckerCapacityWindowAndFlag(t *testing.T) {
	listing := testListing(t)
	checker := Checker{Bookings: sliceFinder{}}

	err := checker.Check(context.Background(), listing, mustRange(t, 2, 4), 3, "")
	assert.ErrorIs(t, err, booking.ErrCapacityExceeded)

	outside, err := daterange.New(day(28), time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	err = checker.Check(context.Background(), listing, outside, 1, "")
	assert.ErrorIs(t, err, booking.ErrSlotUnavailable)

	listing.Available = false
	ok, err := checker.IsAvailable(context.Background(), listing, mustRange(t, 2, 4), 1, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckerSurfacesStorageErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	checker := Checker{Bookings: sliceFinder{err: boom}}
	ok, err := checker.IsAvailable(context.Background(), testListing(t), mustRange(t, 2, 4), 1, "")
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
}
