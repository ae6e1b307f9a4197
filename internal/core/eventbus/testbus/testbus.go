// Package testbus provides test utilities for the event router.
// It wraps a real Router with dispatch recording and assertion helpers.
package testbus

import (
	"sync"
	"testing"

	"github.com/colonyops/vitals/internal/core/eventbus"
)

// RecordedEvent holds a captured event name, payload and the number of
// handlers the dispatch reached.
type RecordedEvent struct {
	Event    eventbus.Event
	Payload  any
	Handlers int
}

// Bus wraps a real Router with dispatch recording for tests.
type Bus struct {
	*eventbus.Router

	mu       sync.Mutex
	events   []RecordedEvent
	failures []error
	panics   []any
}

// New creates a test router that records every dispatch, handler error and
// handler panic. The router is closed when the test completes.
func New(t *testing.T) *Bus {
	t.Helper()

	tb := &Bus{Router: eventbus.New()}

	tb.OnDispatch(func(event eventbus.Event, payload any, handlers int) {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		tb.events = append(tb.events, RecordedEvent{Event: event, Payload: payload, Handlers: handlers})
	})
	tb.OnError(func(_ eventbus.Event, _ any, err error) {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		tb.failures = append(tb.failures, err)
	})
	tb.OnPanic(func(_ eventbus.Event, _ any, recovered any) {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		tb.panics = append(tb.panics, recovered)
	})

	t.Cleanup(tb.Close)

	return tb
}

// Events returns a copy of all recorded dispatches.
func (tb *Bus) Events() []RecordedEvent {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	out := make([]RecordedEvent, len(tb.events))
	copy(out, tb.events)
	return out
}

// Errors returns a copy of all handler errors.
func (tb *Bus) Errors() []error {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	out := make([]error, len(tb.failures))
	copy(out, tb.failures)
	return out
}

// Panics returns a copy of all recovered handler panics.
func (tb *Bus) Panics() []any {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	out := make([]any, len(tb.panics))
	copy(out, tb.panics)
	return out
}

// Reset clears all recordings.
func (tb *Bus) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.events = nil
	tb.failures = nil
	tb.panics = nil
}

// Count returns how many times event was dispatched.
func (tb *Bus) Count(event eventbus.Event) int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	n := 0
	for _, e := range tb.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

// AssertDispatched asserts that event was dispatched at least once.
func (tb *Bus) AssertDispatched(t *testing.T, event eventbus.Event) {
	t.Helper()
	if tb.Count(event) == 0 {
		t.Errorf("expected event %q to be dispatched, but it was not", event)
	}
}

// AssertNotDispatched asserts that event was never dispatched.
func (tb *Bus) AssertNotDispatched(t *testing.T, event eventbus.Event) {
	t.Helper()
	if n := tb.Count(event); n > 0 {
		t.Errorf("expected event %q to NOT be dispatched, but it was dispatched %d time(s)", event, n)
	}
}
