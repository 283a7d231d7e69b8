package uow

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

const (
	defaultAttempts = 6
	retryBaseDelay  = 10 * time.Millisecond
	retryMaxDelay   = 250 * time.Millisecond
)

// Run executes fn inside a unit started with opts and commits it when fn succeeds.
// A unit already present in ctx is joined instead; its owner commits. Attempts that
// fail with ErrConcurrentUpdate are rolled back and replayed from scratch after a
// jittered, exponentially growing pause so the competing unit can finish.
func Run(ctx context.Context, factory UoWFactory, opts TxOptions, fn func(ctx context.Context, unit UnitOfWork) error) error {
	if unit, ok := FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	if factory == nil {
		return ErrUnitOfWorkMissing
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = runOnce(ctx, factory, opts, fn)
		if err == nil || !errors.Is(err, ErrConcurrentUpdate) {
			return err
		}
		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(retryDelay(i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// retryDelay is drawn from [d/2, d) where d doubles per attempt up to retryMaxDelay.
func retryDelay(attempt int) time.Duration {
	d := retryBaseDelay << attempt
	if d <= 0 || d > retryMaxDelay {
		d = retryMaxDelay
	}
	half := d / 2
	return half + rand.N(half)
}

func runOnce(ctx context.Context, factory UoWFactory, opts TxOptions, fn func(ctx context.Context, unit UnitOfWork) error) error {
	unit, execCtx, err := Begin(ctx, factory, opts)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()
	if err := fn(execCtx, unit); err != nil {
		return err
	}
	if err := unit.Commit(execCtx); err != nil {
		return err
	}
	committed = true
	return nil
}

// Begin starts a unit and returns the context repositories must be called with.
func Begin(ctx context.Context, factory UoWFactory, opts TxOptions) (UnitOfWork, context.Context, error) {
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, ctx, err
	}
	execCtx := ctx
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		execCtx = injector.InjectContext(ctx)
	}
	return unit, ContextWithUnitOfWork(execCtx, unit), nil
}

// Read runs fn inside a read-only unit that is always rolled back. An ambient
// unit in ctx is reused.
func Read(ctx context.Context, factory UoWFactory, fn func(ctx context.Context, unit UnitOfWork) error) error {
	if unit, ok := FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	if factory == nil {
		return ErrUnitOfWorkMissing
	}
	unit, execCtx, err := Begin(ctx, factory, TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = unit.Rollback(execCtx) }()
	return fn(execCtx, unit)
}
