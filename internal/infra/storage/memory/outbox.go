package memory

import (
	"context"
	"time"

	infraoutbox "staybook/internal/infra/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

// Claim hands the oldest due record to a relay worker.
func (s *Store) Claim(ctx context.Context, workerID string) (*infraoutbox.Message, error) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.outbox {
		if e.state != stateNew && e.state != stateFailed {
			continue
		}
		if e.nextAt.After(now) {
			continue
		}
		e.state = stateClaimed
		e.claimedBy = workerID
		return &infraoutbox.Message{
			ID:         e.record.ID,
			Name:       e.record.Name,
			Payload:    append([]byte(nil), e.record.Payload...),
			OccurredAt: e.record.OccurredAt,
			Aggregate:  e.record.Aggregate,
			Headers:    copyHeaders(e.record.Headers),
			Attempts:   e.attempts,
		}, nil
	}
	return nil, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.outbox {
		if e.record.ID == id {
			e.state = stateSent
			return nil
		}
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.outbox {
		if e.record.ID == id {
			e.state = stateFailed
			e.nextAt = next
			e.lastError = errMsg
			e.attempts++
			return nil
		}
	}
	return nil
}

// PendingOutbox counts records not yet delivered.
func (s *Store) PendingOutbox() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.outbox {
		if e.state != stateSent {
			n++
		}
	}
	return n
}

func copyHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var _ infraoutbox.Source = (*Store)(nil)
