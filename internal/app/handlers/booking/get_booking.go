package booking

import (
	"context"

	"staybook/internal/app/dto"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

const getBookingKey = "booking.get"

type GetBookingQuery struct {
	BookingID string `validate:"required"`
	ActorID   string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

func (q GetBookingQuery) Actor() string { return q.ActorID }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (*dto.BookingView, error) {
	var view dto.BookingView
	err := uow.Read(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(q.BookingID))
		if err != nil {
			return err
		}
		if err := authorizeParticipant(ctx, unit, b, q.ActorID); err != nil {
			return err
		}
		payments, err := unit.Payments().ListByBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		view = dto.MapBooking(b, payments)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

var _ queries.Handler[GetBookingQuery, *dto.BookingView] = (*GetBookingHandler)(nil)
