package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/shared/clock"
	"staybook/internal/domain/shared/daterange"
)

var ErrSweeperNotConfigured = errors.New("booking: sweeper missing dependencies")

// Sweeper expires stale PENDING bookings and completes CONFIRMED stays whose
// check-out has passed. It only talks to the Lifecycle, so it races safely with
// payment verification.
type Sweeper struct {
	UoWFactory uow.UoWFactory
	Lifecycle  *Lifecycle
	Clock      clock.Clock
	PendingTTL time.Duration
	Interval   time.Duration
	BatchSize  int
	Logger     *slog.Logger
}

type SweepReport struct {
	Expired   int
	Completed int
	Skipped   int
}

func (s *Sweeper) Run(ctx context.Context) error {
	if s.UoWFactory == nil || s.Lifecycle == nil {
		return ErrSweeperNotConfigured
	}
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report, err := s.SweepOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log().WarnContext(ctx, "sweep failed", "error", err)
				continue
			}
			if report.Expired+report.Completed > 0 {
				s.log().InfoContext(ctx, "sweep finished", "expired", report.Expired, "completed", report.Completed, "skipped", report.Skipped)
			}
		}
	}
}

// SweepOnce runs a single pass over both candidate sets.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	if s.UoWFactory == nil || s.Lifecycle == nil {
		return report, ErrSweeperNotConfigured
	}
	now := clock.OrSystem(s.Clock).Now()

	if s.PendingTTL > 0 {
		cutoff := now.Add(-s.PendingTTL)
		stale, err := s.list(ctx, func(ctx context.Context, repo domainbooking.Repository) ([]*domainbooking.Booking, error) {
			return repo.ListExpirable(ctx, cutoff, s.batchSize())
		})
		if err != nil {
			return report, err
		}
		for _, b := range stale {
			if s.apply(ctx, b.ID, domainbooking.TriggerExpire, "payment window elapsed") {
				report.Expired++
			} else {
				report.Skipped++
			}
		}
	}

	today := daterange.Date(now)
	elapsed, err := s.list(ctx, func(ctx context.Context, repo domainbooking.Repository) ([]*domainbooking.Booking, error) {
		return repo.ListCompletable(ctx, today, s.batchSize())
	})
	if err != nil {
		return report, err
	}
	for _, b := range elapsed {
		if s.apply(ctx, b.ID, domainbooking.TriggerComplete, "") {
			report.Completed++
		} else {
			report.Skipped++
		}
	}
	return report, nil
}

func (s *Sweeper) list(ctx context.Context, query func(context.Context, domainbooking.Repository) ([]*domainbooking.Booking, error)) ([]*domainbooking.Booking, error) {
	var out []*domainbooking.Booking
	err := uow.Read(ctx, s.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		out, err = query(ctx, unit.Bookings())
		return err
	})
	return out, err
}

// apply reports whether the transition was applied by this pass. A booking that
// moved on in the meantime (paid, cancelled) is skipped.
func (s *Sweeper) apply(ctx context.Context, id domainbooking.BookingID, trigger domainbooking.Trigger, reason string) bool {
	applied := false
	opts := uow.TxOptions{Locks: []string{uow.BookingLock(id)}}
	err := uow.Run(ctx, s.UoWFactory, opts, func(ctx context.Context, unit uow.UnitOfWork) error {
		_, changed, err := s.Lifecycle.Apply(ctx, unit, id, trigger, reason)
		applied = changed
		return err
	})
	if err != nil {
		if !errors.Is(err, domainbooking.ErrInvalidTransition) {
			s.log().WarnContext(ctx, "sweep transition failed", "booking_id", id, "trigger", trigger, "error", err)
		}
		return false
	}
	return applied
}

func (s *Sweeper) interval() time.Duration {
	if s.Interval <= 0 {
		return time.Minute
	}
	return s.Interval
}

func (s *Sweeper) batchSize() int {
	if s.BatchSize <= 0 {
		return 200
	}
	return s.BatchSize
}

func (s *Sweeper) log() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}
