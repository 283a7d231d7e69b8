package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

var ErrCircuitOpen = errors.New("breaker: circuit is open")

// Breaker opens after maxFailures consecutive failures and lets a single trial
// call through once resetTimeout has elapsed.
type Breaker struct {
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
	trialInFlight   bool
}

func New(maxFailures int, resetTimeout time.Duration) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        StateClosed,
	}
}

// Execute runs fn unless the circuit is open. fn runs without the breaker lock held.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailureTime) <= b.resetTimeout {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.failureCount = 0
		b.trialInFlight = true
	case StateHalfOpen:
		if b.trialInFlight {
			return ErrCircuitOpen
		}
		b.trialInFlight = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	halfOpen := b.state == StateHalfOpen
	if halfOpen {
		b.trialInFlight = false
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		b.failureCount++
		b.lastFailureTime = b.now()
		if halfOpen || b.failureCount >= b.maxFailures {
			b.state = StateOpen
		}
		return
	}
	if err == nil {
		b.state = StateClosed
		b.failureCount = 0
	}
}
