// Package pricing computes the total price of a stay.
package pricing

import (
	"errors"
	"time"

	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var (
	ErrInvalidRange  = errors.New("pricing: checkout must be after checkin")
	ErrNonPositive   = errors.New("pricing: nightly rate must be positive")
	ErrCurrencyUnset = errors.New("pricing: currency must be defined")
)

// Quote is the price locked into a booking at creation time.
type Quote struct {
	Nights  int
	Nightly money.Money
	Total   money.Money
}

// Compute returns nightly × nights, where nights is the whole-day count between
// the dates. It has no side effects.
func Compute(nightly money.Money, checkIn, checkOut time.Time) (Quote, error) {
	dr, err := daterange.New(checkIn, checkOut)
	if err != nil {
		return Quote{}, ErrInvalidRange
	}
	return ComputeRange(nightly, dr)
}

// ComputeRange is Compute for an already validated range.
func ComputeRange(nightly money.Money, dr daterange.DateRange) (Quote, error) {
	if dr.Validate() != nil {
		return Quote{}, ErrInvalidRange
	}
	if nightly.Currency == "" {
		return Quote{}, ErrCurrencyUnset
	}
	if !nightly.IsPositive() {
		return Quote{}, ErrNonPositive
	}
	nights := dr.Nights()
	return Quote{
		Nights:  nights,
		Nightly: nightly,
		Total:   nightly.Multiply(int64(nights)),
	}, nil
}
