package daterange

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
)

const day = 24 * time.Hour

// DateRange represents a half-open interval of calendar days [checkIn, checkOut).
// Both bounds are kept at UTC midnight.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// New builds a validated range, truncating both bounds to their calendar date.
func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Date(checkIn), CheckOut: Date(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Date returns the calendar date of t as UTC midnight. The wall-clock date of t
// is kept, so "2024-06-01T23:00:00+03:00" stays on June 1st.
func Date(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

// Nights counts whole days between the bounds; partial days are not billed.
func (dr DateRange) Nights() int {
	return int(Date(dr.CheckOut).Sub(Date(dr.CheckIn)) / day)
}

// Overlaps reports whether [a,b) and [c,d) share at least one day: a < d and c < b.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

// Contains reports whether other lies fully inside the receiver.
func (dr DateRange) Contains(other DateRange) bool {
	return !other.CheckIn.Before(dr.CheckIn) && !other.CheckOut.After(dr.CheckOut)
}

func (dr DateRange) String() string {
	return "[" + dr.CheckIn.Format(time.DateOnly) + ", " + dr.CheckOut.Format(time.DateOnly) + ")"
}
