// Package sandbox is an in-process payment provider for local runs and tests.
package sandbox

import (
	"context"
	"fmt"
	"sync"

	"staybook/internal/app/policies"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/money"
)

type charge struct {
	reference     string
	transactionID string
	amount        money.Money
	reported      *money.Money
	state         domainpayment.GatewayState
}

// Gateway keeps charges in memory. Charges start in Settle (PENDING when unset)
// and can be scripted per reference with Succeed, Fail and Report.
type Gateway struct {
	CheckoutBase string
	Settle       domainpayment.GatewayState

	mu        sync.Mutex
	charges   map[string]*charge
	failures  map[string][]error
	initiated int
	queried   int
	sequence  int
}

func New() *Gateway {
	return &Gateway{
		CheckoutBase: "https://sandbox.staybook.local/checkout/",
		charges:      make(map[string]*charge),
		failures:     make(map[string][]error),
	}
}

func (g *Gateway) InitiateCharge(ctx context.Context, reference string, amount money.Money) (policies.ChargeHandle, error) {
	if err := ctx.Err(); err != nil {
		return policies.ChargeHandle{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	g.initiated++
	if err := g.nextFailure("initiate"); err != nil {
		return policies.ChargeHandle{}, err
	}
	c, ok := g.charges[reference]
	if !ok {
		g.sequence++
		state := g.Settle
		if state == "" {
			state = domainpayment.GatewayPending
		}
		c = &charge{
			reference:     reference,
			transactionID: fmt.Sprintf("sbx-%06d", g.sequence),
			amount:        amount,
			state:         state,
		}
		g.charges[reference] = c
	}
	return policies.ChargeHandle{TransactionID: c.transactionID, CheckoutURL: g.CheckoutBase + reference}, nil
}

func (g *Gateway) QueryStatus(ctx context.Context, reference string) (policies.ChargeStatus, error) {
	if err := ctx.Err(); err != nil {
		return policies.ChargeStatus{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	g.queried++
	if err := g.nextFailure("query"); err != nil {
		return policies.ChargeStatus{}, err
	}
	c, ok := g.charges[reference]
	if !ok {
		return policies.ChargeStatus{}, fmt.Errorf("%w: sandbox has no charge %q", domainpayment.ErrGatewayUnavailable, reference)
	}
	amount := c.amount
	if c.reported != nil {
		amount = *c.reported
	}
	return policies.ChargeStatus{State: c.state, Amount: amount, TransactionID: c.transactionID}, nil
}

// Succeed marks the charge as paid.
func (g *Gateway) Succeed(reference string) { g.setState(reference, domainpayment.GatewaySucceeded) }

// Fail marks the charge as declined.
func (g *Gateway) Fail(reference string) { g.setState(reference, domainpayment.GatewayFailed) }

// Report overrides the amount the provider reports for the charge.
func (g *Gateway) Report(reference string, amount money.Money) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	if c, ok := g.charges[reference]; ok {
		c.reported = &amount
	}
}

// FailNext makes the next call of op ("initiate" or "query") return err.
func (g *Gateway) FailNext(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	g.failures[op] = append(g.failures[op], err)
}

// References lists every reference a charge was opened for.
func (g *Gateway) References() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.charges))
	for ref := range g.charges {
		out = append(out, ref)
	}
	return out
}

func (g *Gateway) Calls() (initiated, queried int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initiated, g.queried
}

func (g *Gateway) setState(reference string, state domainpayment.GatewayState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	if c, ok := g.charges[reference]; ok {
		c.state = state
	}
}

func (g *Gateway) nextFailure(op string) error {
	queue := g.failures[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	g.failures[op] = queue[1:]
	return err
}

func (g *Gateway) init() {
	if g.charges == nil {
		g.charges = make(map[string]*charge)
	}
	if g.failures == nil {
		g.failures = make(map[string][]error)
	}
}

var _ policies.PaymentGateway = (*Gateway)(nil)
