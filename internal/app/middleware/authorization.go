package middleware

import (
	"context"
	"strings"

	"staybook/internal/app/apperr"
	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
)

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// ActorMessage is implemented by messages issued on behalf of an authenticated actor.
type ActorMessage interface {
	Actor() string
}

// RequireActor rejects actor-bound messages that arrive without an actor id.
// Identity itself is established upstream.
type RequireActor struct{}

func (RequireActor) Authorize(_ context.Context, message any) error {
	m, ok := message.(ActorMessage)
	if !ok {
		return nil
	}
	if strings.TrimSpace(m.Actor()) == "" {
		return apperr.ErrUnauthenticated
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
