package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/notify"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/clock"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/storage/memory"
)

const (
	testListing = "lst-1"
	testOwner   = "owner-1"
	testGuest   = "guest-1"
)

type fixture struct {
	store     *memory.Store
	factory   memory.Factory
	clock     *clock.Manual
	lifecycle *bookingapp.Lifecycle
	reserve   *bookingapp.ReserveBookingHandler
	cancel    *bookingapp.CancelBookingHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	clk := clock.NewManual(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:          testListing,
		Owner:       testOwner,
		Title:       "Loft near the river",
		NightlyRate: money.Must(10000, "ETB"),
		Capacity:    3,
		Available:   true,
		Now:         clk.Now(),
	})
	require.NoError(t, err)
	store.SeedListing(listing)

	factory := memory.Factory{Store: store}
	lifecycle := &bookingapp.Lifecycle{
		Clock:    clk,
		Notifier: notify.OutboxNotifier{Now: clk.Now},
	}
	return &fixture{
		store:     store,
		factory:   factory,
		clock:     clk,
		lifecycle: lifecycle,
		reserve:   &bookingapp.ReserveBookingHandler{UoWFactory: factory, Clock: clk},
		cancel:    &bookingapp.CancelBookingHandler{UoWFactory: factory, Lifecycle: lifecycle},
	}
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func reserveCmd(checkIn, checkOut time.Time, guests int) bookingapp.ReserveBookingCommand {
	return bookingapp.ReserveBookingCommand{
		ListingID: testListing,
		GuestID:   testGuest,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		Guests:    guests,
	}
}

func (f *fixture) mustReserve(t *testing.T, checkIn, checkOut time.Time) *dto.BookingView {
	t.Helper()
	view, err := f.reserve.Handle(context.Background(), reserveCmd(checkIn, checkOut, 2))
	require.NoError(t, err)
	return view
}

func (f *fixture) apply(t *testing.T, id string, trigger domainbooking.Trigger) (*domainbooking.Booking, bool, error) {
	t.Helper()
	var (
		out     *domainbooking.Booking
		changed bool
	)
	bid := domainbooking.BookingID(id)
	err := uow.Run(context.Background(), f.factory, uow.TxOptions{Locks: []string{uow.BookingLock(bid)}}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		out, changed, err = f.lifecycle.Apply(ctx, unit, bid, trigger, "")
		return err
	})
	return out, changed, err
}

func (f *fixture) status(t *testing.T, id string) domainbooking.Status {
	t.Helper()
	var status domainbooking.Status
	err := uow.Read(context.Background(), f.factory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(id))
		if err != nil {
			return err
		}
		status = b.Status
		return nil
	})
	require.NoError(t, err)
	return status
}

func (f *fixture) outboxNames() []string {
	var names []string
	for _, rec := range f.store.OutboxRecords() {
		names = append(names, rec.Name)
	}
	return names
}
