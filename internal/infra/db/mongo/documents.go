package mongo

import (
	"time"

	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/pricing"
	domainrange "staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func newMoneyDocument(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}

type listingDocument struct {
	ID          string        `bson:"_id"`
	Owner       string        `bson:"owner_id"`
	Title       string        `bson:"title"`
	NightlyRate moneyDocument `bson:"nightly_rate"`
	Capacity    int           `bson:"capacity"`
	WindowStart int64         `bson:"window_start"`
	WindowEnd   int64         `bson:"window_end"`
	Available   bool          `bson:"available"`
	CreatedAt   int64         `bson:"created_at"`
	UpdatedAt   int64         `bson:"updated_at"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	return listingDocument{
		ID:          string(l.ID),
		Owner:       string(l.Owner),
		Title:       l.Title,
		NightlyRate: newMoneyDocument(l.NightlyRate),
		Capacity:    l.Capacity,
		WindowStart: timeToTimestamp(l.Window.CheckIn),
		WindowEnd:   timeToTimestamp(l.Window.CheckOut),
		Available:   l.Available,
		CreatedAt:   timeToTimestamp(l.CreatedAt),
		UpdatedAt:   timeToTimestamp(l.UpdatedAt),
	}
}

func (d listingDocument) toAggregate() *domainlistings.Listing {
	return &domainlistings.Listing{
		ID:          domainlistings.ListingID(d.ID),
		Owner:       domainlistings.OwnerID(d.Owner),
		Title:       d.Title,
		NightlyRate: d.NightlyRate.toMoney(),
		Capacity:    d.Capacity,
		Window:      domainrange.DateRange{CheckIn: timestampToTime(d.WindowStart), CheckOut: timestampToTime(d.WindowEnd)},
		Available:   d.Available,
		CreatedAt:   timestampToTime(d.CreatedAt),
		UpdatedAt:   timestampToTime(d.UpdatedAt),
	}
}

type bookingDocument struct {
	ID        string        `bson:"_id"`
	ListingID string        `bson:"listing_id"`
	GuestID   string        `bson:"guest_id"`
	CheckIn   int64         `bson:"check_in"`
	CheckOut  int64         `bson:"check_out"`
	Guests    int           `bson:"guests"`
	Nights    int           `bson:"nights"`
	Nightly   moneyDocument `bson:"nightly"`
	Total     moneyDocument `bson:"total"`
	Status    string        `bson:"status"`
	CreatedAt int64         `bson:"created_at"`
	UpdatedAt int64         `bson:"updated_at"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:        string(b.ID),
		ListingID: string(b.ListingID),
		GuestID:   b.GuestID,
		CheckIn:   b.Range.CheckIn.UnixMilli(),
		CheckOut:  b.Range.CheckOut.UnixMilli(),
		Guests:    b.Guests,
		Nights:    b.Price.Nights,
		Nightly:   newMoneyDocument(b.Price.Nightly),
		Total:     newMoneyDocument(b.Price.Total),
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt.UnixMilli(),
		UpdatedAt: b.UpdatedAt.UnixMilli(),
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:        domainbooking.BookingID(d.ID),
		ListingID: domainlistings.ListingID(d.ListingID),
		GuestID:   d.GuestID,
		Range:     domainrange.DateRange{CheckIn: timestampToTime(d.CheckIn), CheckOut: timestampToTime(d.CheckOut)},
		Guests:    d.Guests,
		Price: pricing.Quote{
			Nights:  d.Nights,
			Nightly: d.Nightly.toMoney(),
			Total:   d.Total.toMoney(),
		},
		Status:    domainbooking.Status(d.Status),
		CreatedAt: timestampToTime(d.CreatedAt),
		UpdatedAt: timestampToTime(d.UpdatedAt),
	}
}

type paymentDocument struct {
	ID            string        `bson:"_id"`
	BookingID     string        `bson:"booking_id"`
	Reference     string        `bson:"reference"`
	TransactionID string        `bson:"transaction_id,omitempty"`
	CheckoutURL   string        `bson:"checkout_url,omitempty"`
	Amount        moneyDocument `bson:"amount"`
	Status        string        `bson:"status"`
	CreatedAt     int64         `bson:"created_at"`
	UpdatedAt     int64         `bson:"updated_at"`
}

func newPaymentDocument(p *domainpayment.Payment) paymentDocument {
	return paymentDocument{
		ID:            string(p.ID),
		BookingID:     string(p.BookingID),
		Reference:     p.Reference,
		TransactionID: p.TransactionID,
		CheckoutURL:   p.CheckoutURL,
		Amount:        newMoneyDocument(p.Amount),
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt.UnixMilli(),
		UpdatedAt:     p.UpdatedAt.UnixMilli(),
	}
}

func (d paymentDocument) toAggregate() *domainpayment.Payment {
	return &domainpayment.Payment{
		ID:            domainpayment.PaymentID(d.ID),
		BookingID:     domainbooking.BookingID(d.BookingID),
		Reference:     d.Reference,
		TransactionID: d.TransactionID,
		CheckoutURL:   d.CheckoutURL,
		Amount:        d.Amount.toMoney(),
		Status:        domainpayment.Status(d.Status),
		CreatedAt:     timestampToTime(d.CreatedAt),
		UpdatedAt:     timestampToTime(d.UpdatedAt),
	}
}

func timeToTimestamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func timestampToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
