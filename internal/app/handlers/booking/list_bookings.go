package booking

import (
	"context"

	"staybook/internal/app/dto"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainlistings "staybook/internal/domain/listings"
)

const (
	listBookingsKey     = "booking.list"
	defaultBookingsPage = 100
)

// ListBookingsQuery lists the bookings the actor took part in: stays they booked
// as a guest and stays booked on listings they own.
type ListBookingsQuery struct {
	ActorID string `validate:"required"`
	Limit   int    `validate:"gte=0,lte=500"`
}

func (q ListBookingsQuery) Key() string { return listBookingsKey }

func (q ListBookingsQuery) Actor() string { return q.ActorID }

type ListBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListBookingsHandler) Handle(ctx context.Context, q ListBookingsQuery) ([]dto.BookingView, error) {
	limit := q.Limit
	if limit == 0 {
		limit = defaultBookingsPage
	}
	views := []dto.BookingView{}
	err := uow.Read(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		owned, err := unit.Listings().ListByOwner(ctx, domainlistings.OwnerID(q.ActorID))
		if err != nil {
			return err
		}
		ids := make([]domainlistings.ListingID, 0, len(owned))
		for _, l := range owned {
			ids = append(ids, l.ID)
		}
		bookings, err := unit.Bookings().ListForParticipant(ctx, q.ActorID, ids, limit)
		if err != nil {
			return err
		}
		for _, b := range bookings {
			views = append(views, dto.MapBooking(b, nil))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

var _ queries.Handler[ListBookingsQuery, []dto.BookingView] = (*ListBookingsHandler)(nil)
