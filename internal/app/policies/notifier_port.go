package policies

import "context"

// NotificationDispatcher hands a confirmed booking to the notification channel.
// Delivery is asynchronous and at-least-once.
type NotificationDispatcher interface {
	NotifyConfirmed(ctx context.Context, bookingID string) error
}
