package payments

import (
	"context"
	"errors"
	"log/slog"

	"staybook/internal/app/apperr"
	"staybook/internal/app/commands"
	"staybook/internal/app/middleware"
	domainbooking "staybook/internal/domain/booking"
)

const (
	initiatePaymentKey = "payment.initiate"
	verifyPaymentKey   = "payment.verify"
	paymentCallbackKey = "payment.callback"
)

type InitiatePaymentCommand struct {
	BookingID       string `validate:"required"`
	ActorID         string `validate:"required"`
	IdempotencyKeyV string
}

func (c InitiatePaymentCommand) Key() string            { return initiatePaymentKey }
func (c InitiatePaymentCommand) Actor() string          { return c.ActorID }
func (c InitiatePaymentCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c InitiatePaymentCommand) ResultPrototype() any   { return &Checkout{} }

type VerifyPaymentCommand struct {
	BookingID string `validate:"required"`
	ActorID   string `validate:"required"`
}

func (c VerifyPaymentCommand) Key() string   { return verifyPaymentKey }
func (c VerifyPaymentCommand) Actor() string { return c.ActorID }

// PaymentCallbackCommand is a provider notification about a charge. EventID, when
// the transport carries one, deduplicates redeliveries.
type PaymentCallbackCommand struct {
	Reference string `validate:"required"`
	EventID   string
	Source    string
}

func (c PaymentCallbackCommand) Key() string { return paymentCallbackKey }

type CallbackResult struct {
	Duplicate bool     `json:"duplicate"`
	Outcome   *Outcome `json:"outcome,omitempty"`
}

// Inbox remembers processed callback events.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type InitiatePaymentHandler struct {
	Ledger *Ledger
}

func (h *InitiatePaymentHandler) Handle(ctx context.Context, cmd InitiatePaymentCommand) (*Checkout, error) {
	checkout, err := h.Ledger.Initiate(ctx, domainbooking.BookingID(cmd.BookingID), cmd.ActorID)
	if err != nil {
		return nil, err
	}
	return &checkout, nil
}

type VerifyPaymentHandler struct {
	Ledger *Ledger
}

func (h *VerifyPaymentHandler) Handle(ctx context.Context, cmd VerifyPaymentCommand) (*Outcome, error) {
	out, err := h.Ledger.Verify(ctx, domainbooking.BookingID(cmd.BookingID), cmd.ActorID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type PaymentCallbackHandler struct {
	Ledger *Ledger
	Inbox  Inbox
	Logger *slog.Logger
}

func (h *PaymentCallbackHandler) Handle(ctx context.Context, cmd PaymentCallbackCommand) (*CallbackResult, error) {
	if h.Inbox != nil && cmd.EventID != "" {
		seen, err := h.Inbox.Seen(ctx, cmd.EventID)
		if err != nil {
			return nil, err
		}
		if seen {
			return &CallbackResult{Duplicate: true}, nil
		}
	}
	out, err := h.Ledger.VerifyReference(ctx, cmd.Reference)
	if err != nil {
		if h.Inbox != nil && cmd.EventID != "" && apperr.IsRetriable(err) {
			// let the redelivery try again
			if ferr := h.Inbox.Forget(ctx, cmd.EventID); ferr != nil {
				return nil, errors.Join(err, ferr)
			}
		}
		if h.Logger != nil {
			h.Logger.WarnContext(ctx, "payment callback not settled", "reference", cmd.Reference, "source", cmd.Source, "error", err)
		}
		return nil, err
	}
	if out.State == OutcomePending && h.Inbox != nil && cmd.EventID != "" {
		// the provider has not decided yet; a redelivery must be able to settle it
		if err := h.Inbox.Forget(ctx, cmd.EventID); err != nil {
			return nil, err
		}
	}
	return &CallbackResult{Outcome: &out}, nil
}

// Register wires the payment commands onto bus.
func Register(bus *commands.InMemoryBus, ledger *Ledger, inbox Inbox, logger *slog.Logger) {
	commands.RegisterHandler(bus, initiatePaymentKey, &InitiatePaymentHandler{Ledger: ledger})
	commands.RegisterHandler(bus, verifyPaymentKey, &VerifyPaymentHandler{Ledger: ledger})
	commands.RegisterHandler(bus, paymentCallbackKey, &PaymentCallbackHandler{Ledger: ledger, Inbox: inbox, Logger: logger})
}

var _ middleware.IdempotentCommand = InitiatePaymentCommand{}
