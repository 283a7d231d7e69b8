package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/daterange"
)

type listingRepo struct{ u *Unit }

func (r listingRepo) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	listing, ok := s.listings[id]
	if !ok {
		return nil, domainlistings.ErrListingNotFound
	}
	cp := *listing
	return &cp, nil
}

func (r listingRepo) Save(ctx context.Context, listing *domainlistings.Listing) error {
	s := r.u.store
	return r.u.write(func() (func(), error) {
		prev, existed := s.listings[listing.ID]
		cp := *listing
		s.listings[listing.ID] = &cp
		return func() {
			if existed {
				s.listings[listing.ID] = prev
			} else {
				delete(s.listings, listing.ID)
			}
		}, nil
	})
}

func (r listingRepo) ListByOwner(ctx context.Context, owner domainlistings.OwnerID) ([]*domainlistings.Listing, error) {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domainlistings.Listing
	for _, listing := range s.listings {
		if listing.Owner == owner {
			cp := *listing
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type bookingRepo struct{ u *Unit }

func (r bookingRepo) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (r bookingRepo) FindOverlapping(ctx context.Context, listingID domainlistings.ListingID, dr daterange.DateRange, excluding domainbooking.BookingID) ([]*domainbooking.Booking, error) {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range s.bookings {
		if b.ListingID != listingID || b.ID == excluding || !b.Status.Active() {
			continue
		}
		if b.Range.Overlaps(dr) {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.CheckIn.Before(out[j].Range.CheckIn) })
	return out, nil
}

func (r bookingRepo) Insert(ctx context.Context, b *domainbooking.Booking) error {
	s := r.u.store
	return r.u.write(func() (func(), error) {
		if _, exists := s.bookings[b.ID]; exists {
			return nil, fmt.Errorf("memory: booking %s already exists", b.ID)
		}
		s.bookings[b.ID] = cloneBooking(b)
		return func() { delete(s.bookings, b.ID) }, nil
	})
}

func (r bookingRepo) UpdateStatus(ctx context.Context, id domainbooking.BookingID, expected, next domainbooking.Status, at time.Time) (bool, error) {
	s := r.u.store
	applied := false
	err := r.u.write(func() (func(), error) {
		b, ok := s.bookings[id]
		if !ok {
			return nil, domainbooking.ErrBookingNotFound
		}
		if b.Status != expected {
			return nil, nil
		}
		prevStatus, prevUpdated := b.Status, b.UpdatedAt
		b.Status, b.UpdatedAt = next, at.UTC()
		applied = true
		return func() { b.Status, b.UpdatedAt = prevStatus, prevUpdated }, nil
	})
	return applied, err
}

func (r bookingRepo) ListExpirable(ctx context.Context, createdBefore time.Time, limit int) ([]*domainbooking.Booking, error) {
	out := r.collect(func(b *domainbooking.Booking) bool {
		return b.Status == domainbooking.StatusPending && !b.CreatedAt.After(createdBefore)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (r bookingRepo) ListCompletable(ctx context.Context, checkOutBy time.Time, limit int) ([]*domainbooking.Booking, error) {
	out := r.collect(func(b *domainbooking.Booking) bool {
		return b.Status == domainbooking.StatusConfirmed && !b.Range.CheckOut.After(checkOutBy)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Range.CheckOut.Before(out[j].Range.CheckOut) })
	return truncate(out, limit), nil
}

func (r bookingRepo) ListForParticipant(ctx context.Context, guestID string, listingIDs []domainlistings.ListingID, limit int) ([]*domainbooking.Booking, error) {
	owned := make(map[domainlistings.ListingID]struct{}, len(listingIDs))
	for _, id := range listingIDs {
		owned[id] = struct{}{}
	}
	out := r.collect(func(b *domainbooking.Booking) bool {
		if guestID != "" && b.GuestID == guestID {
			return true
		}
		_, ok := owned[b.ListingID]
		return ok
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (r bookingRepo) collect(match func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domainbooking.Booking
	for _, b := range s.bookings {
		if match(b) {
			out = append(out, cloneBooking(b))
		}
	}
	return out
}

func truncate(out []*domainbooking.Booking, limit int) []*domainbooking.Booking {
	if limit > 0 && len(out) > limit {
		return out[:limit]
	}
	return out
}

type paymentRepo struct{ u *Unit }

func (r paymentRepo) ByID(ctx context.Context, id domainpayment.PaymentID) (*domainpayment.Payment, error) {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, domainpayment.ErrPaymentNotFound
	}
	return clonePayment(p), nil
}

func (r paymentRepo) ByReference(ctx context.Context, reference string) (*domainpayment.Payment, error) {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payments {
		if p.Reference == reference {
			return clonePayment(p), nil
		}
	}
	return nil, domainpayment.ErrPaymentNotFound
}

func (r paymentRepo) FindPending(ctx context.Context, bookingID domainbooking.BookingID) (*domainpayment.Payment, error) {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payments {
		if p.BookingID == bookingID && p.Status == domainpayment.StatusPending {
			return clonePayment(p), nil
		}
	}
	return nil, domainpayment.ErrPaymentNotFound
}

func (r paymentRepo) ListByBooking(ctx context.Context, bookingID domainbooking.BookingID) ([]*domainpayment.Payment, error) {
	s := r.u.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domainpayment.Payment
	for _, p := range s.payments {
		if p.BookingID == bookingID {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r paymentRepo) Insert(ctx context.Context, p *domainpayment.Payment) error {
	s := r.u.store
	return r.u.write(func() (func(), error) {
		for _, other := range s.payments {
			if other.ID == p.ID || other.Reference == p.Reference {
				return nil, fmt.Errorf("memory: payment %s already exists", p.Reference)
			}
			if p.Status == domainpayment.StatusPending && other.BookingID == p.BookingID && other.Status == domainpayment.StatusPending {
				return nil, domainpayment.ErrPendingExists
			}
		}
		s.payments[p.ID] = clonePayment(p)
		return func() { delete(s.payments, p.ID) }, nil
	})
}

func (r paymentRepo) UpdateStatus(ctx context.Context, id domainpayment.PaymentID, expected, next domainpayment.Status, transactionID string, at time.Time) (bool, error) {
	s := r.u.store
	applied := false
	err := r.u.write(func() (func(), error) {
		p, ok := s.payments[id]
		if !ok {
			return nil, domainpayment.ErrPaymentNotFound
		}
		if p.Status != expected {
			return nil, nil
		}
		prev := *p
		p.Status, p.UpdatedAt = next, at.UTC()
		if transactionID != "" {
			p.TransactionID = transactionID
		}
		applied = true
		return func() { *p = prev }, nil
	})
	return applied, err
}

var (
	_ domainlistings.ListingRepository = listingRepo{}
	_ domainbooking.Repository         = bookingRepo{}
	_ domainpayment.Repository         = paymentRepo{}
)
