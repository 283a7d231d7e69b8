package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"staybook/internal/app/policies"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/money"
)

// Gateway guards a payment provider with a per-call timeout and a circuit breaker.
type Gateway struct {
	Next    policies.PaymentGateway
	Breaker *Breaker
	Timeout time.Duration
	Logger  *slog.Logger
}

func Wrap(next policies.PaymentGateway, b *Breaker, timeout time.Duration, logger *slog.Logger) *Gateway {
	return &Gateway{Next: next, Breaker: b, Timeout: timeout, Logger: logger}
}

func (g *Gateway) InitiateCharge(ctx context.Context, reference string, amount money.Money) (policies.ChargeHandle, error) {
	var handle policies.ChargeHandle
	err := g.call(ctx, "initiate", reference, func(ctx context.Context) error {
		var err error
		handle, err = g.Next.InitiateCharge(ctx, reference, amount)
		return err
	})
	return handle, err
}

func (g *Gateway) QueryStatus(ctx context.Context, reference string) (policies.ChargeStatus, error) {
	var status policies.ChargeStatus
	err := g.call(ctx, "query", reference, func(ctx context.Context) error {
		var err error
		status, err = g.Next.QueryStatus(ctx, reference)
		return err
	})
	return status, err
}

func (g *Gateway) call(ctx context.Context, op, reference string, fn func(context.Context) error) error {
	run := func(ctx context.Context) error {
		if g.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.Timeout)
			defer cancel()
		}
		return fn(ctx)
	}
	var err error
	if g.Breaker == nil {
		err = run(ctx)
	} else {
		err = g.Breaker.Execute(ctx, run)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCircuitOpen) && g.Logger != nil {
		g.Logger.WarnContext(ctx, "payment gateway circuit open", "op", op, "reference", reference)
	}
	if errors.Is(err, domainpayment.ErrGatewayUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %w", domainpayment.ErrGatewayUnavailable, op, reference, err)
}

var _ policies.PaymentGateway = (*Gateway)(nil)
