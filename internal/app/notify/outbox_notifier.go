package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
)

const ConfirmedNoticeName = "notification.booking_confirmed"

// OutboxNotifier queues confirmation notices in the outbox of the unit found in
// ctx, so a notice exists exactly when the confirming unit commits. The relay
// delivers it to the notification channel at least once.
type OutboxNotifier struct {
	Template string
	Now      func() time.Time
}

type confirmedNotice struct {
	BookingID string    `json:"booking_id"`
	Template  string    `json:"template"`
	QueuedAt  time.Time `json:"queued_at"`
}

func (n OutboxNotifier) NotifyConfirmed(ctx context.Context, bookingID string) error {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return uow.ErrUnitOfWorkMissing
	}
	now := time.Now().UTC()
	if n.Now != nil {
		now = n.Now().UTC()
	}
	template := n.Template
	if template == "" {
		template = "booking_confirmed"
	}
	payload, err := json.Marshal(confirmedNotice{BookingID: bookingID, Template: template, QueuedAt: now})
	if err != nil {
		return err
	}
	return unit.Outbox().Add(ctx, outbox.EventRecord{
		ID:         uuid.NewString(),
		Name:       ConfirmedNoticeName,
		Payload:    payload,
		OccurredAt: now,
		Aggregate:  bookingID,
		Headers:    map[string]string{"notification-template": template},
	})
}

var _ policies.NotificationDispatcher = OutboxNotifier{}
