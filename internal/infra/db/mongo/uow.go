package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainpayment "staybook/internal/domain/payment"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	ListingsRepo *ListingRepository
	BookingsRepo *BookingRepository
	PaymentsRepo *PaymentRepository
	OutboxStore  *OutboxStore
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

func NewFactory(db *mongo.Database) Factory {
	return Factory{
		DB:           db,
		ListingsRepo: NewListingRepository(db),
		BookingsRepo: NewBookingRepository(db),
		PaymentsRepo: NewPaymentRepository(db),
		OutboxStore:  NewOutboxStore(db),
	}
}

// Begin starts a snapshot transaction and writes one lock document per key. Two
// units writing the same lock document conflict, and the later one fails with
// uow.ErrConcurrentUpdate so uow.Run replays it against the committed state.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	unit := &Unit{factory: f, session: session}
	if !opts.ReadOnly {
		if err := unit.lock(ctx, opts.SortedLocks()); err != nil {
			_ = session.AbortTransaction(ctx)
			session.EndSession(ctx)
			return nil, err
		}
	}
	return unit, nil
}

type Unit struct {
	factory Factory
	session mongo.Session
}

func (u *Unit) Listings() domainlistings.ListingRepository { return u.factory.ListingsRepo }
func (u *Unit) Bookings() domainbooking.Repository         { return u.factory.BookingsRepo }
func (u *Unit) Payments() domainpayment.Repository         { return u.factory.PaymentsRepo }
func (u *Unit) Outbox() appoutbox.Outbox                   { return u.factory.OutboxStore }

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if err := u.session.CommitTransaction(ctx); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

func (u *Unit) lock(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	sctx := u.InjectContext(ctx)
	col := u.factory.DB.Collection(locksCollection)
	now := time.Now().UTC()
	for _, key := range keys {
		update := bson.M{"$inc": bson.M{"seq": 1}, "$set": bson.M{"touched_at": now}}
		_, err := col.UpdateOne(sctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
		if mongo.IsDuplicateKeyError(err) {
			// racing first upsert of the same key
			return errors.Join(uow.ErrConcurrentUpdate, err)
		}
		if err != nil {
			return mapWriteErr(err)
		}
	}
	return nil
}

var (
	_ uow.UoWFactory = Factory{}
	_ uow.UnitOfWork = (*Unit)(nil)
)
