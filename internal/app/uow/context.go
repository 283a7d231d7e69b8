package uow

import (
	"context"
	"errors"
)

// ErrUnitOfWorkMissing reports an operation that needs an ambient unit, or a
// factory to open one, and got neither.
var ErrUnitOfWorkMissing = errors.New("uow: no unit of work in context")

type unitKey struct{}

// ContextWithUnitOfWork makes unit the ambient unit for nested Run and Read calls.
func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, unitKey{}, unit)
}

// FromContext reports the ambient unit, if any.
func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(unitKey{}).(UnitOfWork)
	return unit, ok && unit != nil
}
