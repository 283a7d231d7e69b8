package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/apperr"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/clock"
)

var ErrLedgerNotConfigured = errors.New("payments: ledger missing dependencies")

// Checkout is what a guest needs to pay for a booking.
type Checkout struct {
	BookingID   string `json:"booking_id"`
	PaymentID   string `json:"payment_id"`
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkout_url"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	// Reused is true when an earlier pending attempt was returned.
	Reused bool `json:"reused"`
}

type OutcomeState string

const (
	OutcomeConfirmed OutcomeState = "confirmed"
	OutcomeFailed    OutcomeState = "failed"
	OutcomePending   OutcomeState = "pending"
)

// Outcome is the result of a verification.
type Outcome struct {
	State         OutcomeState `json:"state"`
	BookingID     string       `json:"booking_id"`
	BookingStatus string       `json:"booking_status"`
	PaymentID     string       `json:"payment_id"`
	Reference     string       `json:"reference"`
	PaymentStatus string       `json:"payment_status"`
	// Applied is true only for the caller whose unit wrote the terminal status.
	Applied bool `json:"applied"`
}

// Ledger owns payment rows. Gateway calls always happen outside locked units;
// terminal writes happen under the booking lock with conditional updates.
type Ledger struct {
	UoWFactory uow.UoWFactory
	Gateway    policies.PaymentGateway
	Lifecycle  *bookingapp.Lifecycle
	Clock      clock.Clock
	Metrics    policies.Metrics
	Logger     *slog.Logger
	// CancelOnFailure cancels the booking when the provider reports a failed charge.
	CancelOnFailure bool
	NewReference    func() string
}

type LedgerDeps struct {
	UoWFactory uow.UoWFactory
	Gateway    policies.PaymentGateway
	Lifecycle  *bookingapp.Lifecycle
	Clock      clock.Clock
	Metrics    policies.Metrics
	Logger     *slog.Logger
}

func NewLedger(deps LedgerDeps) *Ledger {
	return &Ledger{
		UoWFactory:      deps.UoWFactory,
		Gateway:         deps.Gateway,
		Lifecycle:       deps.Lifecycle,
		Clock:           deps.Clock,
		Metrics:         deps.Metrics,
		Logger:          deps.Logger,
		CancelOnFailure: true,
	}
}

// Initiate returns the checkout handle of the booking's pending payment, creating
// one when none exists. The payment row is written only after the gateway accepted
// the charge; a gateway failure leaves nothing behind.
func (l *Ledger) Initiate(ctx context.Context, bookingID domainbooking.BookingID, actorID string) (Checkout, error) {
	if err := l.ready(); err != nil {
		return Checkout{}, err
	}
	metrics := policies.MetricsOrNop(l.Metrics)

	var (
		target   *domainbooking.Booking
		existing *domainpayment.Payment
	)
	err := uow.Read(ctx, l.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := l.guestBooking(ctx, unit, bookingID, actorID)
		if err != nil {
			return err
		}
		if b.Status != domainbooking.StatusPending {
			return fmt.Errorf("%w: booking %s is %s", domainpayment.ErrBookingNotPending, b.ID, b.Status)
		}
		target = b
		existing, err = findPending(ctx, unit, b.ID)
		return err
	})
	if err != nil {
		return Checkout{}, err
	}
	if existing != nil {
		metrics.PaymentInitiated("reused")
		return checkoutOf(existing, true), nil
	}

	reference := l.reference()
	amount := target.Price.Total
	started := time.Now()
	handle, err := l.Gateway.InitiateCharge(ctx, reference, amount)
	metrics.GatewayCall("initiate", time.Since(started), err)
	if err != nil {
		metrics.PaymentInitiated("gateway_error")
		l.log().WarnContext(ctx, "payment initiation failed", "booking_id", bookingID, "reference", reference, "error", err)
		return Checkout{}, gatewayError(err)
	}

	var (
		stored *domainpayment.Payment
		reused bool
	)
	opts := uow.TxOptions{Locks: []string{uow.BookingLock(bookingID)}}
	err = uow.Run(ctx, l.UoWFactory, opts, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != domainbooking.StatusPending {
			return fmt.Errorf("%w: booking %s is %s", domainpayment.ErrBookingNotPending, b.ID, b.Status)
		}
		current, err := findPending(ctx, unit, bookingID)
		if err != nil {
			return err
		}
		if current != nil {
			stored, reused = current, true
			return nil
		}
		p, err := domainpayment.NewPayment(domainpayment.CreateParams{
			ID:            domainpayment.PaymentID(uuid.NewString()),
			BookingID:     bookingID,
			Reference:     reference,
			TransactionID: handle.TransactionID,
			CheckoutURL:   handle.CheckoutURL,
			Amount:        amount,
			CreatedAt:     clock.OrSystem(l.Clock).Now(),
		})
		if err != nil {
			return err
		}
		if err := unit.Payments().Insert(ctx, p); err != nil {
			return err
		}
		stored, reused = p, false
		return nil
	})
	if errors.Is(err, domainpayment.ErrPendingExists) {
		// a concurrent initiation committed first; hand out its checkout
		err = uow.Read(ctx, l.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
			current, err := findPending(ctx, unit, bookingID)
			if err != nil {
				return err
			}
			if current == nil {
				return fmt.Errorf("%w: pending payment vanished", uow.ErrConcurrentUpdate)
			}
			stored, reused = current, true
			return nil
		})
	}
	if err != nil {
		metrics.PaymentInitiated("error")
		return Checkout{}, err
	}
	if reused {
		metrics.PaymentInitiated("reused")
		l.log().InfoContext(ctx, "concurrent initiation reused pending payment", "booking_id", bookingID, "reference", stored.Reference, "discarded_reference", reference)
	} else {
		metrics.PaymentInitiated("created")
		l.log().InfoContext(ctx, "payment initiated", "booking_id", bookingID, "reference", stored.Reference, "amount", stored.Amount.String())
	}
	return checkoutOf(stored, reused), nil
}

// Verify reconciles the booking's pending payment with the provider. Repeated and
// concurrent calls converge on the same outcome; exactly one of them applies it.
func (l *Ledger) Verify(ctx context.Context, bookingID domainbooking.BookingID, actorID string) (Outcome, error) {
	if err := l.ready(); err != nil {
		return Outcome{}, err
	}
	var (
		pending *domainpayment.Payment
		settled *Outcome
	)
	err := uow.Read(ctx, l.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := l.guestBooking(ctx, unit, bookingID, actorID)
		if err != nil {
			return err
		}
		pending, err = findPending(ctx, unit, bookingID)
		if err != nil || pending != nil {
			return err
		}
		attempts, err := unit.Payments().ListByBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		last := domainpayment.LatestTerminal(attempts)
		if last == nil {
			return fmt.Errorf("%w: booking %s", domainpayment.ErrNoPaymentFound, bookingID)
		}
		out := outcomeOf(b, last, false)
		settled = &out
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if settled != nil {
		return *settled, nil
	}
	return l.settle(ctx, pending)
}

// VerifyReference is Verify for provider callbacks, which only know the reference.
func (l *Ledger) VerifyReference(ctx context.Context, reference string) (Outcome, error) {
	if err := l.ready(); err != nil {
		return Outcome{}, err
	}
	var p *domainpayment.Payment
	err := uow.Read(ctx, l.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		p, err = unit.Payments().ByReference(ctx, reference)
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	if p.Status.Terminal() {
		var out Outcome
		err := uow.Read(ctx, l.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
			b, err := unit.Bookings().ByID(ctx, p.BookingID)
			if err != nil {
				return err
			}
			out = outcomeOf(b, p, false)
			return nil
		})
		return out, err
	}
	return l.settle(ctx, p)
}

func (l *Ledger) settle(ctx context.Context, pending *domainpayment.Payment) (Outcome, error) {
	metrics := policies.MetricsOrNop(l.Metrics)
	started := time.Now()
	status, err := l.Gateway.QueryStatus(ctx, pending.Reference)
	metrics.GatewayCall("query", time.Since(started), err)
	if err != nil {
		l.log().WarnContext(ctx, "payment status query failed", "booking_id", pending.BookingID, "reference", pending.Reference, "error", err)
		return Outcome{}, gatewayError(err)
	}

	next, terminal := domainpayment.Resolve(status.State)
	if !terminal {
		var out Outcome
		err := uow.Read(ctx, l.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
			b, err := unit.Bookings().ByID(ctx, pending.BookingID)
			if err != nil {
				return err
			}
			out = outcomeOf(b, pending, false)
			return nil
		})
		return out, err
	}
	if status.State == domainpayment.GatewaySucceeded && !status.Amount.Equal(pending.Amount) {
		l.log().WarnContext(ctx, "provider amount mismatch", "booking_id", pending.BookingID, "reference", pending.Reference, "expected", pending.Amount.String(), "reported", status.Amount.String())
		return Outcome{}, fmt.Errorf("%w: expected %s, provider reported %s", domainpayment.ErrAmountMismatch, pending.Amount, status.Amount)
	}
	txID := status.TransactionID
	if txID == "" {
		txID = pending.TransactionID
	}

	var out Outcome
	opts := uow.TxOptions{Locks: []string{uow.BookingLock(pending.BookingID)}}
	err = uow.Run(ctx, l.UoWFactory, opts, func(ctx context.Context, unit uow.UnitOfWork) error {
		current, err := unit.Payments().ByID(ctx, pending.ID)
		if err != nil {
			return err
		}
		if current.Status.Terminal() {
			b, err := unit.Bookings().ByID(ctx, current.BookingID)
			if err != nil {
				return err
			}
			out = outcomeOf(b, current, false)
			return nil
		}
		now := clock.OrSystem(l.Clock).Now()
		ok, err := unit.Payments().UpdateStatus(ctx, current.ID, domainpayment.StatusPending, next, txID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: payment %s settled concurrently", uow.ErrConcurrentUpdate, current.ID)
		}
		current.Status, current.TransactionID, current.UpdatedAt = next, txID, now

		var b *domainbooking.Booking
		switch {
		case next == domainpayment.StatusCompleted:
			b, _, err = l.Lifecycle.Apply(ctx, unit, current.BookingID, domainbooking.TriggerPaymentSucceeded, "")
		case l.CancelOnFailure:
			b, _, err = l.Lifecycle.Apply(ctx, unit, current.BookingID, domainbooking.TriggerPaymentFailed, "payment failed")
		default:
			b, err = unit.Bookings().ByID(ctx, current.BookingID)
		}
		if err != nil {
			return err
		}
		out = outcomeOf(b, current, true)
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if out.Applied {
		metrics.PaymentSettled(out.PaymentStatus)
		l.log().InfoContext(ctx, "payment settled", "booking_id", out.BookingID, "reference", out.Reference, "payment_status", out.PaymentStatus, "booking_status", out.BookingStatus)
	}
	return out, nil
}

func (l *Ledger) guestBooking(ctx context.Context, unit uow.UnitOfWork, id domainbooking.BookingID, actorID string) (*domainbooking.Booking, error) {
	b, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID != "" && b.GuestID != actorID {
		return nil, apperr.ErrForbidden
	}
	return b, nil
}

func (l *Ledger) ready() error {
	if l == nil || l.UoWFactory == nil || l.Gateway == nil || l.Lifecycle == nil {
		return ErrLedgerNotConfigured
	}
	return nil
}

func (l *Ledger) reference() string {
	if l.NewReference != nil {
		return l.NewReference()
	}
	return "stb-" + uuid.NewString()
}

func (l *Ledger) log() *slog.Logger {
	if l.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.Logger
}

func findPending(ctx context.Context, unit uow.UnitOfWork, id domainbooking.BookingID) (*domainpayment.Payment, error) {
	p, err := unit.Payments().FindPending(ctx, id)
	if errors.Is(err, domainpayment.ErrPaymentNotFound) {
		return nil, nil
	}
	return p, err
}

func gatewayError(err error) error {
	if errors.Is(err, domainpayment.ErrGatewayUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domainpayment.ErrGatewayUnavailable, err)
}

func checkoutOf(p *domainpayment.Payment, reused bool) Checkout {
	return Checkout{
		BookingID:   string(p.BookingID),
		PaymentID:   string(p.ID),
		Reference:   p.Reference,
		CheckoutURL: p.CheckoutURL,
		Amount:      p.Amount.Amount,
		Currency:    p.Amount.Currency,
		Reused:      reused,
	}
}

func outcomeOf(b *domainbooking.Booking, p *domainpayment.Payment, applied bool) Outcome {
	state := OutcomePending
	switch p.Status {
	case domainpayment.StatusCompleted:
		state = OutcomeConfirmed
	case domainpayment.StatusFailed:
		state = OutcomeFailed
	}
	return Outcome{
		State:         state,
		BookingID:     string(p.BookingID),
		BookingStatus: string(b.Status),
		PaymentID:     string(p.ID),
		Reference:     p.Reference,
		PaymentStatus: string(p.Status),
		Applied:       applied,
	}
}
