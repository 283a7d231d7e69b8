package availability

import (
	"context"
	"errors"
	"fmt"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

// BookingFinder is the slice of the booking repository the checker reads.
type BookingFinder interface {
	FindOverlapping(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange, excluding booking.BookingID) ([]*booking.Booking, error)
}

// Checker answers whether a listing can take a stay. It reads whatever the finder
// sees, so callers that act on the answer must hold the listing lock.
type Checker struct {
	Bookings BookingFinder
}

var ErrCheckerMisconfigured = errors.New("availability: booking finder required")

// Check returns nil when the stay fits, booking.ErrCapacityExceeded when the party
// is too large, and booking.ErrSlotUnavailable (wrapped with the reason) otherwise.
func (c Checker) Check(ctx context.Context, listing *listings.Listing, dr daterange.DateRange, guests int, excluding booking.BookingID) error {
	if c.Bookings == nil {
		return ErrCheckerMisconfigured
	}
	if listing == nil {
		return listings.ErrListingNotFound
	}
	if err := dr.Validate(); err != nil {
		return fmt.Errorf("%w: %w", booking.ErrDateRangeInvalid, err)
	}
	if guests <= 0 {
		return booking.ErrInvalidGuests
	}
	if guests > listing.Capacity {
		return fmt.Errorf("%w: %d guests, capacity %d", booking.ErrCapacityExceeded, guests, listing.Capacity)
	}
	if !listing.Available {
		return fmt.Errorf("%w: listing is not accepting bookings", booking.ErrSlotUnavailable)
	}
	if !listing.WindowContains(dr) {
		return fmt.Errorf("%w: %s is outside the availability window", booking.ErrSlotUnavailable, dr)
	}
	conflicts, err := c.Bookings.FindOverlapping(ctx, listing.ID, dr, excluding)
	if err != nil {
		return err
	}
	for _, other := range conflicts {
		// repositories filter by status already; the check is repeated so a lax
		// implementation cannot leak cancelled stays into the answer
		if other == nil || !other.Status.Active() || other.ID == excluding {
			continue
		}
		if other.Range.Overlaps(dr) {
			return fmt.Errorf("%w: overlaps booking %s (%s)", booking.ErrSlotUnavailable, other.ID, other.Range)
		}
	}
	return nil
}

// IsAvailable reports whether Check passes. Only storage failures are returned as errors.
func (c Checker) IsAvailable(ctx context.Context, listing *listings.Listing, dr daterange.DateRange, guests int, excluding booking.BookingID) (bool, error) {
	err := c.Check(ctx, listing, dr, guests, excluding)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, booking.ErrSlotUnavailable),
		errors.Is(err, booking.ErrCapacityExceeded),
		errors.Is(err, booking.ErrDateRangeInvalid),
		errors.Is(err, booking.ErrInvalidGuests):
		return false, nil
	default:
		return false, err
	}
}
