package eventbus

import "sync"

// hooks holds diagnostic observers for the Router. They are kept apart from
// handler registrations so that diagnostics never show up as subscribers.
type hooks struct {
	mu          sync.RWMutex
	onDispatch  []func(Event, any, int)
	onError     []func(Event, any, error)
	onPanic     []func(Event, any, any)
	onSubscribe []func(Event)
}

// OnDispatch registers a hook that fires before handlers run. The int is the
// number of handlers the dispatch will reach.
func (r *Router) OnDispatch(fn func(Event, any, int)) {
	r.hooks.mu.Lock()
	r.hooks.onDispatch = append(r.hooks.onDispatch, fn)
	r.hooks.mu.Unlock()
}

// OnError registers a hook that fires when a handler returns an error.
func (r *Router) OnError(fn func(Event, any, error)) {
	r.hooks.mu.Lock()
	r.hooks.onError = append(r.hooks.onError, fn)
	r.hooks.mu.Unlock()
}

// OnPanic registers a hook that fires when a handler panics.
func (r *Router) OnPanic(fn func(Event, any, any)) {
	r.hooks.mu.Lock()
	r.hooks.onPanic = append(r.hooks.onPanic, fn)
	r.hooks.mu.Unlock()
}

// OnSubscribe registers a hook that fires after a handler is registered.
func (r *Router) OnSubscribe(fn func(Event)) {
	r.hooks.mu.Lock()
	r.hooks.onSubscribe = append(r.hooks.onSubscribe, fn)
	r.hooks.mu.Unlock()
}

func (r *Router) runOnDispatch(event Event, payload any, handlers int) {
	r.hooks.mu.RLock()
	fns := r.hooks.onDispatch
	r.hooks.mu.RUnlock()
	for _, fn := range fns {
		safeHook(func() { fn(event, payload, handlers) })
	}
}

func (r *Router) runOnError(event Event, payload any, err error) {
	r.hooks.mu.RLock()
	fns := r.hooks.onError
	r.hooks.mu.RUnlock()
	for _, fn := range fns {
		safeHook(func() { fn(event, payload, err) })
	}
}

func (r *Router) runOnPanic(event Event, payload any, recovered any) {
	r.hooks.mu.RLock()
	fns := r.hooks.onPanic
	r.hooks.mu.RUnlock()
	for _, fn := range fns {
		safeHook(func() { fn(event, payload, recovered) })
	}
}

func (r *Router) runOnSubscribe(event Event) {
	r.hooks.mu.RLock()
	fns := r.hooks.onSubscribe
	r.hooks.mu.RUnlock()
	for _, fn := range fns {
		safeHook(func() { fn(event) })
	}
}

// safeHook runs a diagnostic hook; a broken hook must not affect dispatch.
func safeHook(fn func()) {
	defer func() { recover() }() //nolint:errcheck
	fn()
}
