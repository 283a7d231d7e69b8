package dto

import (
	"time"

	domainbooking "staybook/internal/domain/booking"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

type BookingView struct {
	ID        string        `json:"id"`
	ListingID string        `json:"listing_id"`
	GuestID   string        `json:"guest_id"`
	CheckIn   time.Time     `json:"check_in"`
	CheckOut  time.Time     `json:"check_out"`
	Nights    int           `json:"nights"`
	Guests    int           `json:"guests"`
	Nightly   MoneyDTO      `json:"nightly"`
	Total     MoneyDTO      `json:"total"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Payments  []PaymentView `json:"payments,omitempty"`
}

type PaymentView struct {
	ID            string    `json:"id"`
	Reference     string    `json:"reference"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CheckoutURL   string    `json:"checkout_url,omitempty"`
	Amount        MoneyDTO  `json:"amount"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
		Display:  value.Decimal(),
	}
}

func MapBooking(b *domainbooking.Booking, payments []*domainpayment.Payment) BookingView {
	view := BookingView{
		ID:        string(b.ID),
		ListingID: string(b.ListingID),
		GuestID:   b.GuestID,
		CheckIn:   b.Range.CheckIn,
		CheckOut:  b.Range.CheckOut,
		Nights:    b.Price.Nights,
		Guests:    b.Guests,
		Nightly:   MapMoney(b.Price.Nightly),
		Total:     MapMoney(b.Price.Total),
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	for _, p := range payments {
		view.Payments = append(view.Payments, MapPayment(p))
	}
	return view
}

func MapPayment(p *domainpayment.Payment) PaymentView {
	return PaymentView{
		ID:            string(p.ID),
		Reference:     p.Reference,
		TransactionID: p.TransactionID,
		CheckoutURL:   p.CheckoutURL,
		Amount:        MapMoney(p.Amount),
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
