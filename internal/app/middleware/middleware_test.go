package middleware_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/apperr"
	"staybook/internal/app/commands"
	"staybook/internal/app/middleware"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/infra/storage/memory"
)

type echoResult struct {
	Value string `json:"value"`
	Calls int    `json:"calls"`
}

type echoCommand struct {
	Value   string `validate:"required"`
	ActorID string
	IdemKey string
	Lock    string
}

func (c echoCommand) Key() string            { return "test.echo" }
func (c echoCommand) IdempotencyKey() string { return c.IdemKey }
func (c echoCommand) ResultPrototype() any   { return &echoResult{} }
func (c echoCommand) Actor() string          { return c.ActorID }

func (c echoCommand) TxOptions() uow.TxOptions {
	return uow.TxOptions{Locks: []string{c.Lock}}
}

type echoHandler struct {
	calls int
	err   error
	sawTx bool
}

func (h *echoHandler) Handle(ctx context.Context, cmd echoCommand) (*echoResult, error) {
	h.calls++
	_, h.sawTx = uow.FromContext(ctx)
	if h.err != nil {
		return nil, h.err
	}
	return &echoResult{Value: cmd.Value, Calls: h.calls}, nil
}

func newBus(h *echoHandler, mws ...middleware.CommandMiddleware) commands.Bus {
	base := commands.NewInMemoryBus()
	commands.RegisterHandler(base, "test.echo", h)
	return middleware.ChainCommands(base, mws...)
}

func TestIdempotencyReplaysResult(t *testing.T) {
	h := &echoHandler{}
	bus := newBus(h, middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil))
	cmd := echoCommand{Value: "a", ActorID: "u1", IdemKey: "k1"}

	first, err := commands.Dispatch[echoCommand, *echoResult](context.Background(), bus, cmd)
	require.NoError(t, err)
	second, err := commands.Dispatch[echoCommand, *echoResult](context.Background(), bus, cmd)
	require.NoError(t, err)

	assert.Equal(t, 1, h.calls)
	assert.Equal(t, first, second)

	cmd.IdemKey = "k2"
	_, err = commands.Dispatch[echoCommand, *echoResult](context.Background(), bus, cmd)
	require.NoError(t, err)
	assert.Equal(t, 2, h.calls)
}

func TestIdempotencyStoresFinalErrorsOnly(t *testing.T) {
	h := &echoHandler{err: domainpayment.ErrGatewayUnavailable}
	bus := newBus(h, middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil))
	cmd := echoCommand{Value: "a", IdemKey: "k1"}

	_, err := bus.Dispatch(context.Background(), cmd)
	require.ErrorIs(t, err, domainpayment.ErrGatewayUnavailable)
	h.err = domainbooking.ErrSlotUnavailable
	_, err = bus.Dispatch(context.Background(), cmd)
	require.ErrorIs(t, err, domainbooking.ErrSlotUnavailable)
	assert.Equal(t, 2, h.calls)

	h.err = nil
	_, err = bus.Dispatch(context.Background(), cmd)
	require.Error(t, err)
	assert.Equal(t, apperr.KindContention, apperr.Classify(err))
	assert.Equal(t, 2, h.calls)
}

func TestValidationRejectsMissingFields(t *testing.T) {
	h := &echoHandler{}
	bus := newBus(h, middleware.Validation(middleware.NewStructValidator()))

	_, err := bus.Dispatch(context.Background(), echoCommand{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.Classify(err))
	assert.Zero(t, h.calls)
}

func TestAuthorizationRequiresActor(t *testing.T) {
	h := &echoHandler{}
	bus := newBus(h, middleware.Authorization(middleware.RequireActor{}))

	_, err := bus.Dispatch(context.Background(), echoCommand{Value: "a"})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = bus.Dispatch(context.Background(), echoCommand{Value: "a", ActorID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, h.calls)
}

func TestTransactionPlacesUnitInContext(t *testing.T) {
	h := &echoHandler{}
	store := memory.NewStore()
	bus := newBus(h, middleware.Transaction(memory.Factory{Store: store}))

	_, err := bus.Dispatch(context.Background(), echoCommand{Value: "a", Lock: "listing:l1"})
	require.NoError(t, err)
	assert.True(t, h.sawTx)
}

func TestTransactionRetriesConcurrentUpdate(t *testing.T) {
	h := &echoHandler{err: uow.ErrConcurrentUpdate}
	bus := newBus(h, middleware.Transaction(memory.Factory{Store: memory.NewStore()}))

	_, err := bus.Dispatch(context.Background(), echoCommand{Value: "a", Lock: "listing:l1"})
	assert.True(t, errors.Is(err, uow.ErrConcurrentUpdate))
	assert.Equal(t, 3, h.calls)
}

func TestLoggingPassesThrough(t *testing.T) {
	h := &echoHandler{}
	bus := newBus(h, middleware.Logging(nil))
	res, err := bus.Dispatch(context.Background(), echoCommand{Value: "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", res.(*echoResult).Value)
}
