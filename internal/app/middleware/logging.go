package middleware

import (
	"context"
	"log/slog"
	"time"

	"staybook/internal/app/apperr"
	"staybook/internal/app/commands"
)

// Logging reports every dispatched command. Invariant violations are logged at
// WARN, unclassified failures at ERROR, the rest at DEBUG.
func Logging(log *slog.Logger) CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, cmd)
			if log == nil {
				return res, err
			}
			attrs := []any{"command", cmd.Key(), "duration", time.Since(start)}
			if err == nil {
				log.DebugContext(ctx, "command handled", attrs...)
				return res, nil
			}
			kind := apperr.Classify(err)
			attrs = append(attrs, "kind", string(kind), "error", err)
			switch kind {
			case apperr.KindInvariant, apperr.KindExternal:
				log.WarnContext(ctx, "command rejected", attrs...)
			case apperr.KindUnknown:
				log.ErrorContext(ctx, "command failed", attrs...)
			default:
				log.InfoContext(ctx, "command rejected", attrs...)
			}
			return res, err
		})
	}
}
