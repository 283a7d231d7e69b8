package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	"staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/clock"
	"staybook/internal/domain/shared/daterange"
)

const reserveBookingKey = "booking.reserve"

type ReserveBookingCommand struct {
	CommandID       string
	ListingID       string    `validate:"required"`
	GuestID         string    `validate:"required"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required"`
	Guests          int       `validate:"gte=1"`
	IdempotencyKeyV string
}

func (c ReserveBookingCommand) Key() string { return reserveBookingKey }

func (c ReserveBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c ReserveBookingCommand) ResultPrototype() any { return &dto.BookingView{} }

func (c ReserveBookingCommand) Actor() string { return c.GuestID }

func (c ReserveBookingCommand) TxOptions() uow.TxOptions {
	return uow.TxOptions{Locks: []string{uow.ListingLock(domainlistings.ListingID(c.ListingID))}}
}

// ReserveBookingHandler creates PENDING bookings. Availability check, price
// snapshot and insert happen in one unit holding the listing lock.
type ReserveBookingHandler struct {
	UoWFactory uow.UoWFactory
	Clock      clock.Clock
	Encoder    outbox.EventEncoder
	Metrics    policies.Metrics
	Logger     *slog.Logger
}

func (h *ReserveBookingHandler) Handle(ctx context.Context, cmd ReserveBookingCommand) (*dto.BookingView, error) {
	metrics := policies.MetricsOrNop(h.Metrics)
	dr, err := daterange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		metrics.BookingReserved("invalid")
		return nil, fmt.Errorf("%w: %w", domainbooking.ErrDateRangeInvalid, err)
	}
	now := clock.OrSystem(h.Clock).Now()
	if dr.CheckIn.Before(daterange.Date(now)) {
		metrics.BookingReserved("invalid")
		return nil, fmt.Errorf("%w: check-in %s is in the past", domainbooking.ErrDateRangeInvalid, dr.CheckIn.Format(time.DateOnly))
	}
	id := cmd.CommandID
	if id == "" {
		id = uuid.NewString()
	}

	var created *domainbooking.Booking
	err = uow.Run(ctx, h.UoWFactory, cmd.TxOptions(), func(ctx context.Context, unit uow.UnitOfWork) error {
		listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(cmd.ListingID))
		if err != nil {
			return err
		}
		checker := availability.Checker{Bookings: unit.Bookings()}
		if err := checker.Check(ctx, listing, dr, cmd.Guests, ""); err != nil {
			return err
		}
		quote, err := pricing.ComputeRange(listing.NightlyRate, dr)
		if err != nil {
			return err
		}
		b, err := domainbooking.NewBooking(domainbooking.CreateParams{
			ID:        domainbooking.BookingID(id),
			ListingID: listing.ID,
			GuestID:   cmd.GuestID,
			Range:     dr,
			Guests:    cmd.Guests,
			Price:     quote,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		if err := unit.Bookings().Insert(ctx, b); err != nil {
			return err
		}
		if err := outbox.Drain(ctx, unit.Outbox(), h.Encoder, b); err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		metrics.BookingReserved(reserveOutcome(err))
		return nil, err
	}
	metrics.BookingReserved("created")
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "booking reserved", "booking_id", created.ID, "listing_id", created.ListingID, "range", created.Range.String(), "total", created.Price.Total.String())
	}
	view := dto.MapBooking(created, nil)
	return &view, nil
}

func reserveOutcome(err error) string {
	switch {
	case errors.Is(err, domainbooking.ErrSlotUnavailable):
		return "unavailable"
	case errors.Is(err, domainbooking.ErrCapacityExceeded):
		return "capacity"
	case errors.Is(err, domainbooking.ErrDateRangeInvalid):
		return "invalid"
	default:
		return "error"
	}
}

var _ commands.Handler[ReserveBookingCommand, *dto.BookingView] = (*ReserveBookingHandler)(nil)
var _ middleware.IdempotentCommand = ReserveBookingCommand{}
var _ middleware.ScopedCommand = ReserveBookingCommand{}
