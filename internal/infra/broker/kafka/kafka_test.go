package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/commands"
	paymentsapp "staybook/internal/app/handlers/payments"
	domainbooking "staybook/internal/domain/booking"
	domainpayment "staybook/internal/domain/payment"
)

func TestProducerPublishesKeyedMessageWithSortedHeaders(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, cfg)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "booking.events.v1", msg.Topic)
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "bk-1", string(key))
		require.Len(t, msg.Headers, 2)
		assert.Equal(t, "ce_type", string(msg.Headers[0].Key))
		assert.Equal(t, "content-type", string(msg.Headers[1].Key))
		return nil
	})

	p := NewProducerFrom(sp)
	err := p.Publish(context.Background(), "booking.events.v1", "bk-1", []byte(`{}`), map[string]string{
		"content-type": "application/cloudevents+json",
		"ce_type":      "booking.confirmed.v1",
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestProducerSurfacesSendFailure(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, cfg)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerFrom(sp)
	err := p.Publish(context.Background(), "t", "k", nil, nil)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestNewConfigIsValid(t *testing.T) {
	require.NoError(t, NewConfig("staybook-test").Validate())
}

func TestDecodeCallback(t *testing.T) {
	tests := []struct {
		name    string
		msg     *sarama.ConsumerMessage
		ref     string
		eventID string
		wantErr bool
	}{
		{
			name:    "body event id",
			msg:     &sarama.ConsumerMessage{Value: []byte(`{"tx_ref":"ref-1","event_id":"evt-1"}`)},
			ref:     "ref-1",
			eventID: "evt-1",
		},
		{
			name: "header event id",
			msg: &sarama.ConsumerMessage{
				Value:   []byte(`{"reference":"ref-2"}`),
				Headers: []*sarama.RecordHeader{{Key: []byte("ce_id"), Value: []byte("evt-2")}},
			},
			ref:     "ref-2",
			eventID: "evt-2",
		},
		{
			name:    "coordinates",
			msg:     &sarama.ConsumerMessage{Topic: "payments.callbacks", Partition: 1, Offset: 42, Value: []byte(`{"tx_ref":"ref-3"}`)},
			ref:     "ref-3",
			eventID: "payments.callbacks/1/42",
		},
		{name: "no reference", msg: &sarama.ConsumerMessage{Value: []byte(`{"status":"success"}`)}, wantErr: true},
		{name: "not json", msg: &sarama.ConsumerMessage{Value: []byte(`tx_ref=ref-4`)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := DecodeCallback(tt.msg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedCallback)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ref, cmd.Reference)
			assert.Equal(t, tt.eventID, cmd.EventID)
			assert.Equal(t, "kafka", cmd.Source)
		})
	}
}

type scriptedBus struct {
	errs  []error
	calls int
	last  paymentsapp.PaymentCallbackCommand
}

func (b *scriptedBus) Dispatch(_ context.Context, cmd commands.Command) (any, error) {
	b.calls++
	b.last = cmd.(paymentsapp.PaymentCallbackCommand)
	if len(b.errs) == 0 {
		return &paymentsapp.CallbackResult{}, nil
	}
	err := b.errs[0]
	b.errs = b.errs[1:]
	return nil, err
}

func TestCallbackHandlerRetriesRetriableFailures(t *testing.T) {
	bus := &scriptedBus{errs: []error{domainpayment.ErrGatewayUnavailable}}
	h := CallbackHandler{Commands: bus}

	err := h.Handle(context.Background(), &sarama.ConsumerMessage{Value: []byte(`{"tx_ref":"ref-1"}`)})
	require.NoError(t, err)
	assert.Equal(t, 2, bus.calls)
	assert.Equal(t, "ref-1", bus.last.Reference)
}

func TestCallbackHandlerGivesUpAfterMaxAttempts(t *testing.T) {
	unavailable := domainpayment.ErrGatewayUnavailable
	bus := &scriptedBus{errs: []error{unavailable, unavailable, unavailable}}
	h := CallbackHandler{Commands: bus, MaxAttempts: 2}

	err := h.Handle(context.Background(), &sarama.ConsumerMessage{Value: []byte(`{"tx_ref":"ref-1"}`)})
	assert.True(t, errors.Is(err, unavailable))
	assert.Equal(t, 2, bus.calls)
}

func TestCallbackHandlerAcknowledgesFinalFailures(t *testing.T) {
	bus := &scriptedBus{errs: []error{domainbooking.ErrInvalidTransition}}
	h := CallbackHandler{Commands: bus}

	require.NoError(t, h.Handle(context.Background(), &sarama.ConsumerMessage{Value: []byte(`{"tx_ref":"ref-1"}`)}))
	assert.Equal(t, 1, bus.calls)

	require.NoError(t, h.Handle(context.Background(), &sarama.ConsumerMessage{Value: []byte(`garbage`)}))
	assert.Equal(t, 1, bus.calls)
}
