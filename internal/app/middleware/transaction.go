package middleware

import (
	"context"

	"staybook/internal/app/commands"
	"staybook/internal/app/uow"
)

// ScopedCommand declares the unit of work (and the locks) its handler needs.
type ScopedCommand interface {
	commands.Command
	TxOptions() uow.TxOptions
}

// Transaction runs scoped commands inside a unit of work placed in the context.
// Handlers joining it through uow.Run share the unit; conflicts replay the command.
// Other commands pass through and manage their own units.
func Transaction(factory uow.UoWFactory) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			scoped, ok := cmd.(ScopedCommand)
			if !ok {
				return nextFn(ctx, cmd)
			}
			var res any
			err := uow.Run(ctx, factory, scoped.TxOptions(), func(ctx context.Context, _ uow.UnitOfWork) error {
				var err error
				res, err = nextFn(ctx, cmd)
				return err
			})
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
