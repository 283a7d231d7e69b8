package postgres

import (
	"context"
	"database/sql"
	"errors"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainpayment "staybook/internal/domain/payment"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")

// Factory begins read-committed transactions. Every lock key becomes a
// transaction-scoped advisory lock, taken in sorted order and released by
// COMMIT or ROLLBACK.
type Factory struct {
	DB *sql.DB

	ListingsRepo *ListingRepository
	BookingsRepo *BookingRepository
	PaymentsRepo *PaymentRepository
	OutboxStore  *OutboxStore
}

func NewFactory(db *sql.DB) Factory {
	return Factory{
		DB:           db,
		ListingsRepo: NewListingRepository(db),
		BookingsRepo: NewBookingRepository(db),
		PaymentsRepo: NewPaymentRepository(db),
		OutboxStore:  NewOutboxStore(db),
	}
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	tx, err := f.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, err
	}
	if !opts.ReadOnly {
		for _, key := range opts.SortedLocks() {
			if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
				_ = tx.Rollback()
				return nil, mapErr(err)
			}
		}
	}
	return &Unit{factory: f, tx: tx}, nil
}

type Unit struct {
	factory Factory
	tx      *sql.Tx
}

func (u *Unit) Listings() domainlistings.ListingRepository { return u.factory.ListingsRepo }
func (u *Unit) Bookings() domainbooking.Repository         { return u.factory.BookingsRepo }
func (u *Unit) Payments() domainpayment.Repository         { return u.factory.PaymentsRepo }
func (u *Unit) Outbox() appoutbox.Outbox                   { return u.factory.OutboxStore }

func (u *Unit) Commit(ctx context.Context) error {
	return mapErr(u.tx.Commit())
}

func (u *Unit) Rollback(ctx context.Context) error {
	err := u.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// InjectContext routes repository calls made with the returned context through tx.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return withTx(ctx, u.tx)
}

var (
	_ uow.UoWFactory = Factory{}
	_ uow.UnitOfWork = (*Unit)(nil)
)
