package uow

import (
	"context"
	"errors"
	"sort"

	"staybook/internal/app/outbox"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainpayment "staybook/internal/domain/payment"
)

// ErrConcurrentUpdate is returned by stores when a conditional write lost a race
// or the underlying transaction hit a write conflict. Run retries it.
var ErrConcurrentUpdate = errors.New("uow: concurrent update detected")

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Listings() domainlistings.ListingRepository
	Bookings() domainbooking.Repository
	Payments() domainpayment.Repository
	// Outbox records events that become visible to the relay only on Commit.
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
	// Locks are exclusive keys held until Commit or Rollback.
	Locks []string
	// MaxAttempts bounds Run retries on ErrConcurrentUpdate; zero means 6.
	MaxAttempts int
}

func ListingLock(id domainlistings.ListingID) string { return "listing:" + string(id) }

func BookingLock(id domainbooking.BookingID) string { return "booking:" + string(id) }

// SortedLocks returns the lock keys deduplicated in acquisition order.
func (o TxOptions) SortedLocks() []string {
	if len(o.Locks) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(o.Locks))
	keys := make([]string, 0, len(o.Locks))
	for _, k := range o.Locks {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
