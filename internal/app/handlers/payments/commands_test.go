package payments_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/handlers/payments"
	domainbooking "staybook/internal/domain/booking"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/infra/storage/memory"
)

func TestCallbackDeduplicatesEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	checkout, err := f.ledger.Initiate(ctx, f.bookingID(), guest)
	require.NoError(t, err)
	f.gateway.Succeed(checkout.Reference)

	h := &payments.PaymentCallbackHandler{Ledger: f.ledger, Inbox: memory.NewInbox()}
	cmd := payments.PaymentCallbackCommand{Reference: checkout.Reference, EventID: "evt-1", Source: "test"}

	first, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	require.NotNil(t, first.Outcome)
	assert.Equal(t, payments.OutcomeConfirmed, first.Outcome.State)

	second, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, 1, f.confirmedEvents())
}

func TestCallbackRetriableFailureAllowsRedelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	checkout, err := f.ledger.Initiate(ctx, f.bookingID(), guest)
	require.NoError(t, err)
	f.gateway.Succeed(checkout.Reference)
	f.gateway.FailNext("query", errBoom)

	h := &payments.PaymentCallbackHandler{Ledger: f.ledger, Inbox: memory.NewInbox()}
	cmd := payments.PaymentCallbackCommand{Reference: checkout.Reference, EventID: "evt-2"}

	_, err = h.Handle(ctx, cmd)
	assert.ErrorIs(t, err, domainpayment.ErrGatewayUnavailable)

	res, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, string(domainbooking.StatusConfirmed), res.Outcome.BookingStatus)
}

func TestCallbackWhileProviderPendingAllowsRedelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	checkout, err := f.ledger.Initiate(ctx, f.bookingID(), guest)
	require.NoError(t, err)

	h := &payments.PaymentCallbackHandler{Ledger: f.ledger, Inbox: memory.NewInbox()}
	cmd := payments.PaymentCallbackCommand{Reference: checkout.Reference, EventID: "evt-3"}

	res, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, payments.OutcomePending, res.Outcome.State)

	f.gateway.Succeed(checkout.Reference)
	res, err = h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, string(domainbooking.StatusConfirmed), res.Outcome.BookingStatus)

	res, err = h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
}

func TestCallbackUnknownReference(t *testing.T) {
	f := newFixture(t)
	h := &payments.PaymentCallbackHandler{Ledger: f.ledger}
	_, err := h.Handle(context.Background(), payments.PaymentCallbackCommand{Reference: "stb-missing"})
	assert.ErrorIs(t, err, domainpayment.ErrPaymentNotFound)
}
