package eventbus

import (
	"slices"
	"sync"
)

// Handler receives the payload of a dispatched event. A returned error or a
// panic is reported through the router's hooks and never stops delivery to
// the remaining handlers.
type Handler func(payload any) error

// Subscription identifies one handler registration. It is returned by
// Subscribe and consumed by Unsubscribe. The zero value is invalid.
type Subscription struct {
	event Event
	id    uint64
}

// Event returns the event type the subscription was registered for.
func (s Subscription) Event() Event { return s.event }

// Valid reports whether the subscription refers to a registration.
func (s Subscription) Valid() bool { return s.id != 0 }

type registration struct {
	id uint64
	fn Handler
}

// Router is a typed publish/subscribe registry. Handlers for an event run
// synchronously on the dispatching goroutine in registration order.
type Router struct {
	mu     sync.RWMutex
	subs   map[Event][]registration
	nextID uint64
	closed bool

	hooks hooks
}

// New creates an empty router.
func New() *Router {
	return &Router{subs: make(map[Event][]registration)}
}

// Subscribe registers fn for event. A nil handler, or a closed router,
// yields an invalid Subscription.
func (r *Router) Subscribe(event Event, fn Handler) Subscription {
	if fn == nil {
		return Subscription{}
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Subscription{}
	}
	r.nextID++
	sub := Subscription{event: event, id: r.nextID}
	r.subs[event] = append(r.subs[event], registration{id: sub.id, fn: fn})
	r.mu.Unlock()

	r.runOnSubscribe(event)
	return sub
}

// Unsubscribe removes exactly the registration identified by sub. Removing an
// already removed or invalid subscription is a no-op.
func (r *Router) Unsubscribe(sub Subscription) {
	if !sub.Valid() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	regs := r.subs[sub.event]
	idx := slices.IndexFunc(regs, func(reg registration) bool { return reg.id == sub.id })
	if idx < 0 {
		return
	}

	// Build a new slice; in-flight dispatches hold the old one.
	next := make([]registration, 0, len(regs)-1)
	next = append(next, regs[:idx]...)
	next = append(next, regs[idx+1:]...)
	if len(next) == 0 {
		delete(r.subs, sub.event)
		return
	}
	r.subs[sub.event] = next
}

// Dispatch invokes every handler registered for event at the time of the
// call, in registration order, passing payload unchanged. Registrations made
// or removed by a handler take effect from the next dispatch.
func (r *Router) Dispatch(event Event, payload any) {
	r.mu.RLock()
	regs := r.subs[event]
	r.mu.RUnlock()

	r.runOnDispatch(event, payload, len(regs))

	for _, reg := range regs {
		r.invoke(event, payload, reg.fn)
	}
}

func (r *Router) invoke(event Event, payload any, fn Handler) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.runOnPanic(event, payload, recovered)
		}
	}()

	if err := fn(payload); err != nil {
		r.runOnError(event, payload, err)
	}
}

// HandlerCount returns the number of handlers registered for event.
func (r *Router) HandlerCount(event Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[event])
}

// Close drops every registration. Later Subscribe calls return invalid
// subscriptions and Dispatch becomes a no-op.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.subs = make(map[Event][]registration)
}
