package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/middleware"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainpayment "staybook/internal/domain/payment"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var lockQuery = regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestBeginTakesAdvisoryLocksInSortedOrder(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WithArgs("booking:bk-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(lockQuery).WithArgs("listing:lst-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	opts := uow.TxOptions{Locks: []string{"listing:lst-1", "booking:bk-1", "listing:lst-1"}}
	err := uow.Run(context.Background(), NewFactory(db), opts, func(ctx context.Context, unit uow.UnitOfWork) error {
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunReplaysUnitAfterSerializationFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WillReturnError(&pq.Error{Code: codeDeadlockDetected})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	calls := 0
	opts := uow.TxOptions{Locks: []string{"listing:lst-1"}}
	err := uow.Run(context.Background(), NewFactory(db), opts, func(ctx context.Context, unit uow.UnitOfWork) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadOnlyUnitSkipsLocksAndRollsBack(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := uow.Read(context.Background(), NewFactory(db), func(ctx context.Context, unit uow.UnitOfWork) error {
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingUpdateStatusIsCompareAndSet(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepository(db)
	update := regexp.QuoteMeta(`UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`)
	mock.ExpectExec(update).
		WithArgs("CONFIRMED", sqlmock.AnyArg(), "bk-1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).
		WithArgs("CONFIRMED", sqlmock.AnyArg(), "bk-1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	now := time.Now()
	ok, err := repo.UpdateStatus(context.Background(), "bk-1", domainbooking.StatusPending, domainbooking.StatusConfirmed, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateStatus(context.Background(), "bk-1", domainbooking.StatusPending, domainbooking.StatusConfirmed, now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOverlappingMapsRows(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepository(db)
	checkIn := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	checkOut := checkIn.AddDate(0, 0, 2)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "listing_id", "guest_id", "check_in", "check_out", "guests", "nights",
		"nightly_amount", "total_amount", "currency", "status", "created_at", "updated_at"}).
		AddRow("bk-1", "lst-1", "guest-1", checkIn, checkOut, 2, 2, int64(10000), int64(20000), "ETB", "PENDING", created, created)
	mock.ExpectQuery(`FROM bookings\s+WHERE listing_id = \$1 AND status = ANY\(\$2\)`).
		WithArgs("lst-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "").
		WillReturnRows(rows)

	got, err := repo.FindOverlapping(context.Background(), "lst-1", domainrange.DateRange{CheckIn: checkIn, CheckOut: checkOut}, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	b := got[0]
	assert.Equal(t, domainbooking.BookingID("bk-1"), b.ID)
	assert.Equal(t, domainbooking.StatusPending, b.Status)
	assert.Equal(t, 2, b.Price.Nights)
	assert.Equal(t, money.Money{Amount: 20000, Currency: "ETB"}, b.Price.Total)
	assert.True(t, b.Range.CheckIn.Equal(checkIn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCompletableFiltersByCheckOut(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepository(db)
	today := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	checkIn := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "listing_id", "guest_id", "check_in", "check_out", "guests", "nights",
		"nightly_amount", "total_amount", "currency", "status", "created_at", "updated_at"}).
		AddRow("bk-2", "lst-1", "guest-1", checkIn, checkIn.AddDate(0, 0, 2), 1, 2, int64(10000), int64(20000), "ETB", "CONFIRMED", created, created)
	mock.ExpectQuery(`WHERE status = \$1 AND check_out <= \$2 ORDER BY check_out LIMIT \$3`).
		WithArgs("CONFIRMED", today, 1).
		WillReturnRows(rows)

	got, err := repo.ListCompletable(context.Background(), today, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domainbooking.StatusConfirmed, got[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListForParticipantMatchesGuestOrOwnedListings(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookingRepository(db)
	mock.ExpectQuery(`WHERE \(guest_id = \$1 AND \$1 <> ''\) OR listing_id = ANY\(\$2\) ORDER BY created_at DESC`).
		WithArgs("owner-1", pq.Array([]string{"lst-1", "lst-2"})).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := repo.ListForParticipant(context.Background(), "owner-1", []domainlistings.ListingID{"lst-1", "lst-2"}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestByIDReturnsNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM bookings WHERE id = \$1`).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`FROM payments WHERE reference = \$1`).WithArgs("ref-x").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewBookingRepository(db).ByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
	_, err = NewPaymentRepository(db).ByReference(context.Background(), "ref-x")
	assert.ErrorIs(t, err, domainpayment.ErrPaymentNotFound)
}

func TestPaymentInsertMapsPendingIndexViolation(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO payments`).
		WillReturnError(&pq.Error{Code: codeUniqueViolation, Constraint: pendingPaymentIndex})
	mock.ExpectExec(`INSERT INTO payments`).
		WillReturnError(&pq.Error{Code: codeUniqueViolation, Constraint: "payments_reference_key"})

	p := &domainpayment.Payment{
		ID:        "pay-1",
		BookingID: "bk-1",
		Reference: "ref-1",
		Amount:    money.Money{Amount: 20000, Currency: "ETB"},
		Status:    domainpayment.StatusPending,
	}
	repo := NewPaymentRepository(db)
	assert.ErrorIs(t, repo.Insert(context.Background(), p), domainpayment.ErrPendingExists)

	err := repo.Insert(context.Background(), p)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domainpayment.ErrPendingExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxClaimDecodesHeaders(t *testing.T) {
	db, mock := newMock(t)
	occurred := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "name", "payload", "occurred_at", "aggregate", "headers", "attempts"}).
		AddRow("evt-1", "booking.confirmed", []byte(`{}`), occurred, "bk-1", []byte(`{"trace":"abc"}`), 2)
	mock.ExpectQuery(`UPDATE app_outbox SET state = 'CLAIMED'`).
		WithArgs("worker-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)
	mock.ExpectQuery(`UPDATE app_outbox SET state = 'CLAIMED'`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	store := NewOutboxStore(db)
	msg, err := store.Claim(context.Background(), "worker-1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "booking.confirmed", msg.Name)
	assert.Equal(t, "abc", msg.Headers["trace"])
	assert.Equal(t, 2, msg.Attempts)

	msg, err = store.Claim(context.Background(), "worker-1")
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInboxSeenReportsDuplicates(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO app_inbox`).WithArgs("evt-1", "callbacks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO app_inbox`).WithArgs("evt-1", "callbacks").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM app_inbox`).WithArgs("evt-1", "callbacks").WillReturnResult(sqlmock.NewResult(0, 1))

	inbox := NewInbox(db, "callbacks")
	seen, err := inbox.Seen(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = inbox.Seen(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
	require.NoError(t, inbox.Forget(context.Background(), "evt-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStoreReadsLiveRecordsOnly(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewIdempotencyStore(db, time.Hour)
	store.now = func() time.Time { return now }

	mock.ExpectExec(`INSERT INTO app_idempotency .* ON CONFLICT \(key\) DO UPDATE .* WHERE app_idempotency.expires_at <= \$7`).
		WithArgs("reserve:k1", []byte(`{"id":"bk-1"}`), "", "", now, now.Add(time.Hour), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT payload, error, error_kind, occurred_at FROM app_idempotency WHERE key = \$1 AND expires_at > \$2`).
		WithArgs("reserve:k1", now).
		WillReturnRows(sqlmock.NewRows([]string{"payload", "error", "error_kind", "occurred_at"}).
			AddRow([]byte(`{"id":"bk-1"}`), "", "", now))
	mock.ExpectQuery(`FROM app_idempotency`).WithArgs("reserve:k2", now).WillReturnError(sql.ErrNoRows)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "reserve:k1", Payload: []byte(`{"id":"bk-1"}`), OccurredAt: now}))

	rec, ok, err := store.Get(ctx, "reserve:k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"id":"bk-1"}`, string(rec.Payload))
	assert.Equal(t, now, rec.OccurredAt)

	_, ok, err = store.Get(ctx, "reserve:k2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
