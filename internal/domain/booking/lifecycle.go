package booking

import "fmt"

// Trigger is an event that may move a booking to another status.
type Trigger string

const (
	TriggerPaymentSucceeded Trigger = "payment_succeeded"
	TriggerPaymentFailed    Trigger = "payment_failed"
	TriggerCancel           Trigger = "cancel"
	TriggerExpire           Trigger = "expire"
	TriggerComplete         Trigger = "complete"
)

// transitions is the only place where booking status changes are defined.
var transitions = map[Status]map[Trigger]Status{
	StatusPending: {
		TriggerPaymentSucceeded: StatusConfirmed,
		TriggerPaymentFailed:    StatusCancelled,
		TriggerCancel:           StatusCancelled,
		TriggerExpire:           StatusCancelled,
	},
	StatusConfirmed: {
		TriggerComplete: StatusCompleted,
		TriggerCancel:   StatusCancelled,
	},
}

// targets maps each trigger to the status it leads to, used to detect replays.
var targets = map[Trigger]Status{
	TriggerPaymentSucceeded: StatusConfirmed,
	TriggerPaymentFailed:    StatusCancelled,
	TriggerCancel:           StatusCancelled,
	TriggerExpire:           StatusCancelled,
	TriggerComplete:         StatusCompleted,
}

func (t Trigger) Valid() bool {
	_, ok := targets[t]
	return ok
}

// Next resolves the status reached by applying trigger to current.
// A trigger replayed against the status it already produced is a no-op:
// Next returns current with changed=false and no error.
func Next(current Status, trigger Trigger) (next Status, changed bool, err error) {
	target, ok := targets[trigger]
	if !ok {
		return current, false, fmt.Errorf("%w: unknown trigger %q", ErrInvalidTransition, trigger)
	}
	if to, ok := transitions[current][trigger]; ok {
		return to, true, nil
	}
	if current == target {
		return current, false, nil
	}
	return current, false, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, trigger, current)
}
