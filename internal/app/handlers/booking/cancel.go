package booking

import (
	"context"

	"staybook/internal/app/apperr"
	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/middleware"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

const cancelBookingKey = "booking.cancel"

type CancelBookingCommand struct {
	BookingID string `validate:"required"`
	ActorID   string `validate:"required"`
	Reason    string `validate:"max=512"`
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) Actor() string { return c.ActorID }

func (c CancelBookingCommand) TxOptions() uow.TxOptions {
	return uow.TxOptions{Locks: []string{uow.BookingLock(domainbooking.BookingID(c.BookingID))}}
}

// CancelBookingHandler lets the guest or the listing owner cancel a booking.
type CancelBookingHandler struct {
	UoWFactory uow.UoWFactory
	Lifecycle  *Lifecycle
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.BookingView, error) {
	id := domainbooking.BookingID(cmd.BookingID)
	var view dto.BookingView
	err := uow.Run(ctx, h.UoWFactory, cmd.TxOptions(), func(ctx context.Context, unit uow.UnitOfWork) error {
		current, err := unit.Bookings().ByID(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeParticipant(ctx, unit, current, cmd.ActorID); err != nil {
			return err
		}
		updated, _, err := h.Lifecycle.Apply(ctx, unit, id, domainbooking.TriggerCancel, cmd.Reason)
		if err != nil {
			return err
		}
		view = dto.MapBooking(updated, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// authorizeParticipant admits the guest of the booking and the owner of its listing.
func authorizeParticipant(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking, actorID string) error {
	if actorID == "" {
		return apperr.ErrUnauthenticated
	}
	if b.GuestID == actorID {
		return nil
	}
	listing, err := unit.Listings().ByID(ctx, b.ListingID)
	if err != nil {
		return err
	}
	if string(listing.Owner) == actorID {
		return nil
	}
	return apperr.ErrForbidden
}

var _ commands.Handler[CancelBookingCommand, *dto.BookingView] = (*CancelBookingHandler)(nil)
var _ middleware.ScopedCommand = CancelBookingCommand{}
