package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrPayloadType is returned when a payload cannot be converted to the type
// a typed handler expects.
var ErrPayloadType = errors.New("unexpected payload type")

// On registers a typed handler. Payloads arrive as raw JSON (from the push
// channel), as already typed values, or as generic JSON values such as
// map[string]any (local dispatch); all are converted to T before fn runs. Conversion failures are reported like any
// other handler error.
func On[T any](r *Router, event Event, fn func(T)) Subscription {
	return r.Subscribe(event, func(payload any) error {
		v, err := Decode[T](payload)
		if err != nil {
			return fmt.Errorf("decode %s payload: %w", event, err)
		}
		fn(v)
		return nil
	})
}

// Decode converts a dispatched payload into T.
func Decode[T any](payload any) (T, error) {
	var zero T

	switch p := payload.(type) {
	case T:
		return p, nil
	case *T:
		if p == nil {
			return zero, fmt.Errorf("%w: nil %T", ErrPayloadType, p)
		}
		return *p, nil
	case json.RawMessage:
		return unmarshal[T](p)
	case []byte:
		return unmarshal[T](p)
	case string:
		return unmarshal[T]([]byte(p))
	case nil:
		return zero, fmt.Errorf("%w: nil payload, want %T", ErrPayloadType, zero)
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return zero, fmt.Errorf("%w: got %T, want %T: %w", ErrPayloadType, payload, zero, err)
		}
		return unmarshal[T](data)
	}
}

func unmarshal[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

// SubscribeReminders registers fn for EventReminders.
func (r *Router) SubscribeReminders(fn func([]Reminder)) Subscription {
	return On(r, EventReminders, fn)
}

// SubscribeInsights registers fn for EventInsights.
func (r *Router) SubscribeInsights(fn func([]Insight)) Subscription {
	return On(r, EventInsights, fn)
}

// SubscribeNewReminder registers fn for EventNewReminder.
func (r *Router) SubscribeNewReminder(fn func(Reminder)) Subscription {
	return On(r, EventNewReminder, fn)
}

// SubscribeNewInsight registers fn for EventNewInsight.
func (r *Router) SubscribeNewInsight(fn func(Insight)) Subscription {
	return On(r, EventNewInsight, fn)
}

// SubscribeConnectionFailed registers fn for EventConnectionFailed.
func (r *Router) SubscribeConnectionFailed(fn func(ConnectionFailedPayload)) Subscription {
	return On(r, EventConnectionFailed, fn)
}

// DispatchReminders dispatches EventReminders.
func (r *Router) DispatchReminders(reminders []Reminder) {
	r.Dispatch(EventReminders, reminders)
}

// DispatchInsights dispatches EventInsights.
func (r *Router) DispatchInsights(insights []Insight) {
	r.Dispatch(EventInsights, insights)
}

// DispatchNewReminder dispatches EventNewReminder.
func (r *Router) DispatchNewReminder(reminder Reminder) {
	r.Dispatch(EventNewReminder, reminder)
}

// DispatchNewInsight dispatches EventNewInsight.
func (r *Router) DispatchNewInsight(insight Insight) {
	r.Dispatch(EventNewInsight, insight)
}

// DispatchConnectionFailed dispatches EventConnectionFailed.
func (r *Router) DispatchConnectionFailed(p ConnectionFailedPayload) {
	r.Dispatch(EventConnectionFailed, p)
}
