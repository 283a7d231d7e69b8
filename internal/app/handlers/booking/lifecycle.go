package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/shared/clock"
)

// Lifecycle is the only writer of booking status. Every caller (reservation
// cancel, payment ledger, sweeper) goes through Apply.
type Lifecycle struct {
	Clock    clock.Clock
	Policy   domainbooking.CancellationPolicy
	Notifier policies.NotificationDispatcher
	Encoder  outbox.EventEncoder
	Metrics  policies.Metrics
	Logger   *slog.Logger
}

// Apply loads the booking through unit and moves it with trigger. The caller must
// hold the booking lock on unit. A replayed trigger returns the booking unchanged
// with changed=false. A lost compare-and-set surfaces as uow.ErrConcurrentUpdate so
// uow.Run replays the whole unit against fresh state.
func (l *Lifecycle) Apply(ctx context.Context, unit uow.UnitOfWork, id domainbooking.BookingID, trigger domainbooking.Trigger, reason string) (*domainbooking.Booking, bool, error) {
	if unit == nil {
		return nil, false, uow.ErrUnitOfWorkMissing
	}
	b, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	now := clock.OrSystem(l.Clock).Now()
	if trigger == domainbooking.TriggerCancel {
		if err := l.Policy.Allows(b, now); err != nil {
			l.warn(ctx, b, trigger, err)
			return b, false, err
		}
	}
	prev, changed, err := b.Apply(trigger, reason, now)
	if err != nil {
		l.warn(ctx, b, trigger, err)
		return b, false, err
	}
	if !changed {
		return b, false, nil
	}
	ok, err := unit.Bookings().UpdateStatus(ctx, id, prev, b.Status, now)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fmt.Errorf("%w: booking %s is no longer %s", uow.ErrConcurrentUpdate, id, prev)
	}
	if err := outbox.Drain(ctx, unit.Outbox(), l.Encoder, b); err != nil {
		return nil, false, err
	}
	if b.Status == domainbooking.StatusConfirmed {
		l.notifyConfirmed(ctx, b)
	}
	policies.MetricsOrNop(l.Metrics).BookingTransition(string(prev), string(b.Status), string(trigger))
	if l.Logger != nil {
		l.Logger.InfoContext(ctx, "booking transition", "booking_id", b.ID, "from", prev, "to", b.Status, "trigger", trigger)
	}
	return b, true, nil
}

func (l *Lifecycle) notifyConfirmed(ctx context.Context, b *domainbooking.Booking) {
	if l.Notifier == nil {
		return
	}
	if err := l.Notifier.NotifyConfirmed(ctx, string(b.ID)); err != nil && l.Logger != nil {
		l.Logger.ErrorContext(ctx, "confirmation notice not queued", "booking_id", b.ID, "error", err)
	}
}

func (l *Lifecycle) warn(ctx context.Context, b *domainbooking.Booking, trigger domainbooking.Trigger, err error) {
	if l.Logger == nil {
		return
	}
	if errors.Is(err, domainbooking.ErrInvalidTransition) || errors.Is(err, domainbooking.ErrCancellationClosed) {
		l.Logger.WarnContext(ctx, "booking transition rejected", "booking_id", b.ID, "status", b.Status, "trigger", trigger, "error", err)
	}
}
