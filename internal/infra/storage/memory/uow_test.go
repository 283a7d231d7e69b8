package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

func testBooking(t *testing.T, id string) *domainbooking.Booking {
	t.Helper()
	dr, err := daterange.New(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	quote, err := pricing.ComputeRange(money.Must(5000, "ETB"), dr)
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:        domainbooking.BookingID(id),
		ListingID: "lst-1",
		GuestID:   "guest-1",
		Range:     dr,
		Guests:    1,
		Price:     quote,
		CreatedAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return b
}

func TestRollbackUndoesWritesAndDropsOutbox(t *testing.T) {
	store := NewStore()
	factory := Factory{Store: store}
	errAbort := errors.New("abort")

	err := uow.Run(context.Background(), factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		require.NoError(t, unit.Bookings().Insert(ctx, testBooking(t, "b1")))
		require.NoError(t, unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "e1", Name: "booking.requested"}))
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	err = uow.Read(context.Background(), factory, func(ctx context.Context, unit uow.UnitOfWork) error {
		_, err := unit.Bookings().ByID(ctx, "b1")
		return err
	})
	assert.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
	assert.Empty(t, store.OutboxRecords())
}

func TestCommitPublishesOutbox(t *testing.T) {
	store := NewStore()
	err := uow.Run(context.Background(), Factory{Store: store}, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.Bookings().Insert(ctx, testBooking(t, "b1")); err != nil {
			return err
		}
		return unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "e1", Name: "booking.requested"})
	})
	require.NoError(t, err)
	require.Len(t, store.OutboxRecords(), 1)
	assert.Equal(t, 1, store.PendingOutbox())

	msg, err := store.Claim(context.Background(), "w1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.NoError(t, store.MarkSent(context.Background(), msg.ID))
	assert.Zero(t, store.PendingOutbox())
}

func TestUpdateStatusIsCompareAndSet(t *testing.T) {
	store := NewStore()
	factory := Factory{Store: store}
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	err := uow.Run(ctx, factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.Bookings().Insert(ctx, testBooking(t, "b1")); err != nil {
			return err
		}
		ok, err := unit.Bookings().UpdateStatus(ctx, "b1", domainbooking.StatusPending, domainbooking.StatusConfirmed, now)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = unit.Bookings().UpdateStatus(ctx, "b1", domainbooking.StatusPending, domainbooking.StatusCancelled, now)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestOnePendingPaymentPerBooking(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	newPayment := func(id, ref string) *domainpayment.Payment {
		p, err := domainpayment.NewPayment(domainpayment.CreateParams{
			ID:        domainpayment.PaymentID(id),
			BookingID: "b1",
			Reference: ref,
			Amount:    money.Must(10000, "ETB"),
			CreatedAt: time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		return p
	}
	err := uow.Run(ctx, Factory{Store: store}, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		require.NoError(t, unit.Payments().Insert(ctx, newPayment("p1", "r1")))
		return unit.Payments().Insert(ctx, newPayment("p2", "r2"))
	})
	assert.ErrorIs(t, err, domainpayment.ErrPendingExists)
}

func TestLocksSerializeUnits(t *testing.T) {
	store := NewStore()
	factory := Factory{Store: store}
	opts := uow.TxOptions{Locks: []string{"listing:l1"}}

	held, err := factory.Begin(context.Background(), opts)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = factory.Begin(ctx, opts)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := factory.Begin(context.Background(), uow.TxOptions{Locks: []string{"listing:l2"}})
	require.NoError(t, err)
	require.NoError(t, other.Rollback(context.Background()))

	require.NoError(t, held.Commit(context.Background()))
	again, err := factory.Begin(context.Background(), opts)
	require.NoError(t, err)
	require.NoError(t, again.Rollback(context.Background()))
}

func TestReadOnlyUnitRejectsWrites(t *testing.T) {
	err := uow.Read(context.Background(), Factory{Store: NewStore()}, func(ctx context.Context, unit uow.UnitOfWork) error {
		return unit.Bookings().Insert(ctx, testBooking(t, "b1"))
	})
	assert.Error(t, err)
}

func TestInboxForget(t *testing.T) {
	inbox := NewInbox()
	ctx := context.Background()
	seen, err := inbox.Seen(ctx, "evt")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, _ = inbox.Seen(ctx, "evt")
	assert.True(t, seen)
	require.NoError(t, inbox.Forget(ctx, "evt"))
	seen, _ = inbox.Seen(ctx, "evt")
	assert.False(t, seen)
}
