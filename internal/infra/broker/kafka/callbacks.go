package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"staybook/internal/app/apperr"
	"staybook/internal/app/commands"
	paymentsapp "staybook/internal/app/handlers/payments"
)

var ErrMalformedCallback = errors.New("kafka: malformed payment callback")

type callbackMessage struct {
	EventID   string `json:"event_id"`
	TxRef     string `json:"tx_ref"`
	Reference string `json:"reference"`
}

// CallbackHandler turns provider callbacks relayed through Kafka into payment
// callback commands. Retriable failures are retried in place; anything else is
// logged and acknowledged.
type CallbackHandler struct {
	Commands    commands.Bus
	Logger      *slog.Logger
	MaxAttempts int
	Backoff     time.Duration
}

func (h CallbackHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	cmd, err := DecodeCallback(msg)
	if err != nil {
		h.warn(ctx, "payment callback dropped", "offset", msg.Offset, "error", err)
		return nil
	}
	attempts := h.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	for attempt := 1; ; attempt++ {
		res, err := commands.Dispatch[paymentsapp.PaymentCallbackCommand, *paymentsapp.CallbackResult](ctx, h.Commands, cmd)
		if err == nil {
			if res != nil && res.Duplicate {
				h.debug(ctx, "payment callback already processed", "reference", cmd.Reference, "event_id", cmd.EventID)
			}
			return nil
		}
		if !apperr.IsRetriable(err) {
			h.warn(ctx, "payment callback rejected", "reference", cmd.Reference, "event_id", cmd.EventID, "error", err)
			return nil
		}
		if attempt >= attempts {
			return fmt.Errorf("payment callback %s: %w", cmd.Reference, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.Backoff * time.Duration(attempt)):
		}
	}
}

// DecodeCallback reads the reference from the JSON body. The event id comes from
// the body, then the ce_id header, then the message coordinates.
func DecodeCallback(msg *sarama.ConsumerMessage) (paymentsapp.PaymentCallbackCommand, error) {
	var body callbackMessage
	if err := json.Unmarshal(msg.Value, &body); err != nil {
		return paymentsapp.PaymentCallbackCommand{}, fmt.Errorf("%w: %w", ErrMalformedCallback, err)
	}
	ref := strings.TrimSpace(body.TxRef)
	if ref == "" {
		ref = strings.TrimSpace(body.Reference)
	}
	if ref == "" {
		return paymentsapp.PaymentCallbackCommand{}, fmt.Errorf("%w: missing tx_ref", ErrMalformedCallback)
	}
	eventID := body.EventID
	if eventID == "" {
		eventID = header(msg, "ce_id")
	}
	if eventID == "" {
		eventID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	return paymentsapp.PaymentCallbackCommand{Reference: ref, EventID: eventID, Source: "kafka"}, nil
}

func header(msg *sarama.ConsumerMessage, key string) string {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (h CallbackHandler) warn(ctx context.Context, msg string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.WarnContext(ctx, msg, attrs...)
	}
}

func (h CallbackHandler) debug(ctx context.Context, msg string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.DebugContext(ctx, msg, attrs...)
	}
}

var _ MessageHandler = CallbackHandler{}
