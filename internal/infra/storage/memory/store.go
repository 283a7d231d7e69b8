package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "staybook/internal/app/outbox"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainpayment "staybook/internal/domain/payment"
)

// Store holds all in-memory state. Repositories are only reachable through a
// unit of work; writes are undone on Rollback.
type Store struct {
	mu       sync.RWMutex
	listings map[domainlistings.ListingID]*domainlistings.Listing
	bookings map[domainbooking.BookingID]*domainbooking.Booking
	payments map[domainpayment.PaymentID]*domainpayment.Payment
	outbox   []*outboxEntry

	locks *keyedLocks
}

func NewStore() *Store {
	return &Store{
		listings: make(map[domainlistings.ListingID]*domainlistings.Listing),
		bookings: make(map[domainbooking.BookingID]*domainbooking.Booking),
		payments: make(map[domainpayment.PaymentID]*domainpayment.Payment),
		locks:    newKeyedLocks(),
	}
}

// SeedListing stores a listing outside any unit of work. Used by fixtures.
func (s *Store) SeedListing(listing *domainlistings.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *listing
	s.listings[listing.ID] = &cp
}

// OutboxRecords returns committed outbox records in insertion order.
func (s *Store) OutboxRecords() []appoutbox.EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]appoutbox.EventRecord, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, e.record)
	}
	return out
}

// keyedLocks is a set of exclusive named locks whose waiters honour ctx.
type keyedLocks struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{held: make(map[string]chan struct{})}
}

func (k *keyedLocks) acquire(ctx context.Context, key string) error {
	for {
		k.mu.Lock()
		released, busy := k.held[key]
		if !busy {
			k.held[key] = make(chan struct{})
			k.mu.Unlock()
			return nil
		}
		k.mu.Unlock()
		select {
		case <-released:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (k *keyedLocks) release(key string) {
	k.mu.Lock()
	released, ok := k.held[key]
	delete(k.held, key)
	k.mu.Unlock()
	if ok {
		close(released)
	}
}

type outboxEntry struct {
	record    appoutbox.EventRecord
	state     string
	attempts  int
	nextAt    time.Time
	claimedBy string
	lastError string
}

func cloneBooking(b *domainbooking.Booking) *domainbooking.Booking {
	if b == nil {
		return nil
	}
	return &domainbooking.Booking{
		ID:        b.ID,
		ListingID: b.ListingID,
		GuestID:   b.GuestID,
		Range:     b.Range,
		Guests:    b.Guests,
		Price:     b.Price,
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func clonePayment(p *domainpayment.Payment) *domainpayment.Payment {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
