package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/shared/money"
)

var (
	ErrPaymentNotFound    = errors.New("payment: not found")
	ErrNoPaymentFound     = errors.New("payment: no payment initiated for booking")
	ErrPendingExists      = errors.New("payment: booking already has a pending payment")
	ErrAmountMismatch     = errors.New("payment: provider amount does not match booking total")
	ErrGatewayUnavailable = errors.New("payment: gateway unavailable")
	ErrBookingNotPending  = errors.New("payment: booking is not awaiting payment")
)

type PaymentID string

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// GatewayState is the provider-side view of a charge.
type GatewayState string

const (
	GatewaySucceeded GatewayState = "SUCCEEDED"
	GatewayFailed    GatewayState = "FAILED"
	GatewayPending   GatewayState = "PENDING"
)

func ParseGatewayState(raw string) (GatewayState, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "succeeded", "completed":
		return GatewaySucceeded, nil
	case "failed", "failure", "cancelled", "canceled":
		return GatewayFailed, nil
	case "pending", "processing", "":
		return GatewayPending, nil
	}
	return "", fmt.Errorf("payment: unknown gateway state %q", raw)
}

type Payment struct {
	ID            PaymentID
	BookingID     booking.BookingID
	Reference     string
	TransactionID string
	CheckoutURL   string
	Amount        money.Money
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Repository persists payment attempts. Insert fails with ErrPendingExists when the
// booking already holds a PENDING payment.
type Repository interface {
	ByID(ctx context.Context, id PaymentID) (*Payment, error)
	ByReference(ctx context.Context, reference string) (*Payment, error)
	FindPending(ctx context.Context, bookingID booking.BookingID) (*Payment, error)
	// ListByBooking returns every attempt, newest first.
	ListByBooking(ctx context.Context, bookingID booking.BookingID) ([]*Payment, error)
	Insert(ctx context.Context, p *Payment) error
	UpdateStatus(ctx context.Context, id PaymentID, expected, next Status, transactionID string, at time.Time) (bool, error)
}

type CreateParams struct {
	ID            PaymentID
	BookingID     booking.BookingID
	Reference     string
	TransactionID string
	CheckoutURL   string
	Amount        money.Money
	CreatedAt     time.Time
}

func NewPayment(params CreateParams) (*Payment, error) {
	if params.BookingID == "" {
		return nil, errors.New("payment: booking id required")
	}
	if strings.TrimSpace(params.Reference) == "" {
		return nil, errors.New("payment: reference required")
	}
	if !params.Amount.IsPositive() {
		return nil, errors.New("payment: amount must be positive")
	}
	now := params.CreatedAt.UTC()
	return &Payment{
		ID:            params.ID,
		BookingID:     params.BookingID,
		Reference:     params.Reference,
		TransactionID: params.TransactionID,
		CheckoutURL:   params.CheckoutURL,
		Amount:        params.Amount,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Resolve maps a provider state to the payment status it settles into.
func Resolve(state GatewayState) (Status, bool) {
	switch state {
	case GatewaySucceeded:
		return StatusCompleted, true
	case GatewayFailed:
		return StatusFailed, true
	}
	return StatusPending, false
}

// LatestTerminal picks the most recent settled attempt from a newest-first list.
func LatestTerminal(attempts []*Payment) *Payment {
	for _, p := range attempts {
		if p != nil && p.Status.Terminal() {
			return p
		}
	}
	return nil
}
