// Package loop provides the cooperative event loop that serializes all work
// of a notification session: inbound frames, store mutations, presenter
// recomputes and timer callbacks run one at a time, to completion, in the
// order they were posted.
package loop

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Executor runs closures serially.
type Executor interface {
	// Post enqueues fn. It reports false if the executor has stopped and fn
	// will never run.
	Post(fn func()) bool
	// Done is closed once the executor stops accepting work.
	Done() <-chan struct{}
}

// Loop is a single-goroutine Executor. Post must not be called from a task
// running on the same loop when the buffer may be full; tasks on the loop
// call their targets directly instead.
type Loop struct {
	ch       chan func()
	done     chan struct{}
	stopOnce sync.Once
	log      zerolog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used to report panicking tasks.
func WithLogger(l zerolog.Logger) Option {
	return func(lp *Loop) { lp.log = l }
}

// New creates a loop with the given queue size. Run must be called to start
// processing.
func New(buffer int, opts ...Option) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	l := &Loop{
		ch:   make(chan func(), buffer),
		done: make(chan struct{}),
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run processes tasks until ctx is cancelled or Stop is called. Tasks still
// queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) {
	defer l.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case fn := <-l.ch:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Str("panic", fmt.Sprint(r)).Msg("loop task panicked")
		}
	}()
	fn()
}

// Post blocks until fn is queued or the loop stops.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.ch <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Stop stops the loop. Safe to call multiple times.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Inline is an Executor that runs tasks immediately on the caller's
// goroutine. It suits tests and hosts that already serialize calls.
type Inline struct{}

func (Inline) Post(fn func()) bool {
	fn()
	return true
}

func (Inline) Done() <-chan struct{} { return nil }

// Call posts fn and waits for it to finish. It reports false if the executor
// stopped before fn ran. It must not be called from a task on the same loop.
func Call(e Executor, fn func()) bool {
	finished := make(chan struct{})
	if !e.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}

	select {
	case <-finished:
		return true
	case <-e.Done():
		select {
		case <-finished:
			return true
		default:
			return false
		}
	}
}
