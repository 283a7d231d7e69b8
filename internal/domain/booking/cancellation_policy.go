package booking

import (
	"errors"
	"time"
)

var ErrCancellationClosed = errors.New("booking: confirmed stay can no longer be cancelled")

// CancellationPolicy gates cancelling a CONFIRMED booking. Refunds are settled
// outside this system; the policy only decides whether the status may change.
type CancellationPolicy struct {
	// Cutoff is how long before check-in a confirmed stay stops being cancellable.
	Cutoff time.Duration
	// Disabled forbids cancelling confirmed stays entirely.
	Disabled bool
}

func (p CancellationPolicy) Allows(b *Booking, now time.Time) error {
	if b == nil || b.Status != StatusConfirmed {
		return nil
	}
	if p.Disabled {
		return ErrCancellationClosed
	}
	deadline := b.Range.CheckIn.Add(-p.Cutoff)
	if !now.Before(deadline) {
		return ErrCancellationClosed
	}
	return nil
}
