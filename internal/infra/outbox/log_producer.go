package outbox

import (
	"context"
	"log/slog"
)

// LogProducer stands in for the broker when none is configured. The notification
// channel then reads confirmations from the log.
type LogProducer struct {
	Logger *slog.Logger
}

func (p LogProducer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	if p.Logger == nil {
		return nil
	}
	p.Logger.InfoContext(ctx, "event published", "topic", topic, "key", key, "type", headers["ce_type"], "bytes", len(payload))
	return nil
}
