package apperr

import (
	"context"
	"errors"

	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainpayment "staybook/internal/domain/payment"
	domainpricing "staybook/internal/domain/pricing"
	"staybook/internal/domain/shared/daterange"
)

type Kind string

const (
	KindUnknown         Kind = "unknown"
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindContention      Kind = "contention"
	KindInvariant       Kind = "invariant"
	KindExternal        Kind = "external"
	KindForbidden       Kind = "forbidden"
	KindUnauthenticated Kind = "unauthenticated"
)

var (
	ErrForbidden       = errors.New("apperr: actor may not access this resource")
	ErrUnauthenticated = errors.New("apperr: actor id required")
)

// Error carries a kind for failures that lost their sentinel, such as a result
// replayed from the idempotency store.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap tags err with kind while keeping it reachable through errors.Is.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: kind, err: err}
}

type wrapped struct {
	kind Kind
	err  error
}

func (w *wrapped) Error() string { return w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }

var table = []struct {
	err  error
	kind Kind
}{
	{domainbooking.ErrDateRangeInvalid, KindValidation},
	{domainbooking.ErrCapacityExceeded, KindValidation},
	{domainbooking.ErrInvalidGuests, KindValidation},
	{daterange.ErrInvalidRange, KindValidation},
	{domainpricing.ErrInvalidRange, KindValidation},
	{domainpayment.ErrAmountMismatch, KindValidation},
	{domainbooking.ErrSlotUnavailable, KindContention},
	{uow.ErrConcurrentUpdate, KindContention},
	{domainpayment.ErrPendingExists, KindContention},
	{domainbooking.ErrInvalidTransition, KindInvariant},
	{domainbooking.ErrCancellationClosed, KindInvariant},
	{domainpayment.ErrBookingNotPending, KindInvariant},
	{domainpayment.ErrGatewayUnavailable, KindExternal},
	{context.DeadlineExceeded, KindExternal},
	{domainbooking.ErrBookingNotFound, KindNotFound},
	{domainlistings.ErrListingNotFound, KindNotFound},
	{domainpayment.ErrPaymentNotFound, KindNotFound},
	{domainpayment.ErrNoPaymentFound, KindNotFound},
	{ErrForbidden, KindForbidden},
	{ErrUnauthenticated, KindUnauthenticated},
}

func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var w *wrapped
	if errors.As(err, &w) {
		return w.kind
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, entry := range table {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindUnknown
}

// IsRetriable reports whether repeating the same call may succeed: lost races on
// conditional writes and external dependency failures. A taken slot is not retriable.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, uow.ErrConcurrentUpdate) {
		return true
	}
	return Classify(err) == KindExternal
}
