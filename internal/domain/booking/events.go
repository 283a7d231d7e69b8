package booking

import (
	"time"

	"staybook/internal/domain/listings"
)

const EventConfirmed = "booking.confirmed"

type BookingRequested struct {
	BookingID   BookingID          `json:"booking_id"`
	ListingID   listings.ListingID `json:"listing_id"`
	GuestID     string             `json:"guest_id"`
	CheckIn     time.Time          `json:"check_in"`
	CheckOut    time.Time          `json:"check_out"`
	GuestsCount int                `json:"guests_count"`
	Total       int64              `json:"total"`
	Currency    string             `json:"currency"`
	At          time.Time          `json:"at"`
}

func (e BookingRequested) EventName() string     { return "booking.requested" }
func (e BookingRequested) AggregateID() string   { return string(e.BookingID) }
func (e BookingRequested) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID BookingID          `json:"booking_id"`
	ListingID listings.ListingID `json:"listing_id"`
	GuestID   string             `json:"guest_id"`
	CheckIn   time.Time          `json:"check_in"`
	CheckOut  time.Time          `json:"check_out"`
	Total     int64              `json:"total"`
	Currency  string             `json:"currency"`
	At        time.Time          `json:"at"`
}

func (e BookingConfirmed) EventName() string     { return EventConfirmed }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID BookingID          `json:"booking_id"`
	ListingID listings.ListingID `json:"listing_id"`
	From      Status             `json:"from"`
	Trigger   Trigger            `json:"trigger"`
	Reason    string             `json:"reason,omitempty"`
	At        time.Time          `json:"at"`
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID BookingID          `json:"booking_id"`
	ListingID listings.ListingID `json:"listing_id"`
	At        time.Time          `json:"at"`
}

func (e BookingCompleted) EventName() string     { return "booking.completed" }
func (e BookingCompleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }
