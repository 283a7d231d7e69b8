package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainpayment "staybook/internal/domain/payment"
)

var ErrUnitClosed = errors.New("memory: unit of work already finished")

// Factory opens units over a Store. Locks named in TxOptions are held until the
// unit finishes, which serializes check-then-write sequences on the same key.
type Factory struct {
	Store *Store
}

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	keys := opts.SortedLocks()
	acquired := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := f.Store.locks.acquire(ctx, key); err != nil {
			for i := len(acquired) - 1; i >= 0; i-- {
				f.Store.locks.release(acquired[i])
			}
			return nil, err
		}
		acquired = append(acquired, key)
	}
	return &Unit{store: f.Store, locks: acquired, readOnly: opts.ReadOnly}, nil
}

// Unit is a uow.UnitOfWork over the shared Store.
type Unit struct {
	store    *Store
	locks    []string
	readOnly bool

	mu     sync.Mutex
	undo   []func()
	events []appoutbox.EventRecord
	done   bool
}

func (u *Unit) Listings() domainlistings.ListingRepository { return listingRepo{u} }
func (u *Unit) Bookings() domainbooking.Repository         { return bookingRepo{u} }
func (u *Unit) Payments() domainpayment.Repository         { return paymentRepo{u} }
func (u *Unit) Outbox() appoutbox.Outbox                   { return unitOutbox{u} }

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	if len(u.events) > 0 {
		u.store.mu.Lock()
		for _, rec := range u.events {
			u.store.outbox = append(u.store.outbox, &outboxEntry{record: rec, state: stateNew})
		}
		u.store.mu.Unlock()
	}
	u.undo, u.events = nil, nil
	u.releaseLocks()
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil
	}
	u.done = true
	u.store.mu.Lock()
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.store.mu.Unlock()
	u.undo, u.events = nil, nil
	u.releaseLocks()
	return nil
}

func (u *Unit) releaseLocks() {
	for i := len(u.locks) - 1; i >= 0; i-- {
		u.store.locks.release(u.locks[i])
	}
	u.locks = nil
}

// write runs fn under the store lock and remembers its undo step. Callers hold no
// other locks.
func (u *Unit) write(fn func() (undo func(), err error)) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return errors.New("memory: write in read-only unit")
	}
	u.store.mu.Lock()
	undo, err := fn()
	u.store.mu.Unlock()
	if err != nil {
		return err
	}
	if undo != nil {
		u.undo = append(u.undo, undo)
	}
	return nil
}

type unitOutbox struct{ u *Unit }

func (o unitOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.u.mu.Lock()
	defer o.u.mu.Unlock()
	if o.u.done {
		return ErrUnitClosed
	}
	o.u.events = append(o.u.events, record)
	return nil
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
