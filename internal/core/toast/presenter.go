// Package toast derives the transient on-screen toast stack from the
// notification store. It owns only presentation state: which unread records
// are shown, their dismiss timers and their exit transitions.
package toast

import (
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/vitals/internal/core/clock"
	"github.com/colonyops/vitals/internal/core/loop"
	"github.com/colonyops/vitals/internal/core/notify"
)

const (
	DefaultMaxVisible = 3
	DefaultDuration   = 5 * time.Second
	DefaultExitDelay  = 300 * time.Millisecond
)

// Source is the part of the notification store the presenter reads from and
// acknowledges into.
type Source interface {
	Unread() []notify.Notification
	MarkRead(id string)
	Subscribe(fn func()) func()
}

// Toast is one visible item.
type Toast struct {
	Notification notify.Notification
	// ExpiresAt is when the toast closes on its own; zero for persistent
	// toasts and for toasts already closing.
	ExpiresAt time.Time
	// Closing is set while the exit transition runs, before the record is
	// acknowledged.
	Closing bool
}

type entry struct {
	n         notify.Notification
	expiresAt time.Time
	closing   bool
	dismiss   clock.Timer
	exit      clock.Timer
}

func (e *entry) stop() {
	if e.dismiss != nil {
		e.dismiss.Stop()
		e.dismiss = nil
	}
	if e.exit != nil {
		e.exit.Stop()
		e.exit = nil
	}
}

func (e *entry) toast() Toast {
	return Toast{Notification: e.n, ExpiresAt: e.expiresAt, Closing: e.closing}
}

// Presenter shows the earliest-inserted unread records, at most maxVisible
// of them, each with its own dismiss timer. Closing a toast acknowledges the
// record (marks it read); it never deletes it.
type Presenter struct {
	mu          sync.Mutex
	source      Source
	visible     []*entry
	closed      bool
	unsubscribe func()

	clock      clock.Clock
	exec       loop.Executor
	log        zerolog.Logger
	maxVisible int
	duration   time.Duration
	exitDelay  time.Duration

	lmu       sync.Mutex
	listeners []listener
	nextLID   uint64
}

type listener struct {
	id uint64
	fn func([]Toast)
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithClock sets the clock driving dismiss and exit timers.
func WithClock(c clock.Clock) Option {
	return func(p *Presenter) { p.clock = c }
}

// WithExecutor sets where timer callbacks run. Sessions pass their loop so
// timers never race event dispatch.
func WithExecutor(e loop.Executor) Option {
	return func(p *Presenter) { p.exec = e }
}

// WithLogger sets the presenter logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Presenter) { p.log = l }
}

// WithMaxVisible caps the number of toasts shown at once.
func WithMaxVisible(n int) Option {
	return func(p *Presenter) {
		if n > 0 {
			p.maxVisible = n
		}
	}
}

// WithDuration sets how long a toast stays before closing on its own.
// A duration <= 0 makes toasts persistent until dismissed.
func WithDuration(d time.Duration) Option {
	return func(p *Presenter) { p.duration = d }
}

// WithExitDelay sets the grace period between closing a toast and
// acknowledging its record.
func WithExitDelay(d time.Duration) Option {
	return func(p *Presenter) { p.exitDelay = d }
}

// New creates a presenter attached to source and computes the initial
// stack.
func New(source Source, opts ...Option) *Presenter {
	p := &Presenter{
		source:     source,
		clock:      clock.Real{},
		exec:       loop.Inline{},
		log:        zerolog.Nop(),
		maxVisible: DefaultMaxVisible,
		duration:   DefaultDuration,
		exitDelay:  DefaultExitDelay,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.unsubscribe = source.Subscribe(p.recompute)
	p.recompute()
	return p
}

// recompute rebuilds the visible slice from the store's unread records.
// Toasts that stay visible keep their timers; new ones get fresh timers;
// ones that dropped out have their timers cancelled.
func (p *Presenter) recompute() {
	unread := p.source.Unread()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	limit := min(p.maxVisible, len(unread))
	current := make(map[string]*entry, len(p.visible))
	for _, e := range p.visible {
		current[e.n.ID] = e
	}

	next := make([]*entry, 0, limit)
	for _, n := range unread[:limit] {
		if e, ok := current[n.ID]; ok {
			e.n = n
			next = append(next, e)
			delete(current, n.ID)
			continue
		}
		next = append(next, p.showLocked(n))
	}

	for _, e := range current {
		e.stop()
	}

	p.visible = next
	snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.emit(snapshot)
}

func (p *Presenter) showLocked(n notify.Notification) *entry {
	e := &entry{n: n}
	if p.duration > 0 {
		e.expiresAt = p.clock.Now().Add(p.duration)
		e.dismiss = p.clock.AfterFunc(p.duration, p.deferred(func() {
			p.log.Debug().Str("id", n.ID).Msg("toast expired")
			p.close(e)
		}))
	}
	return e
}

// deferred wraps a timer callback so it runs on the presenter's executor.
func (p *Presenter) deferred(fn func()) func() {
	return func() { p.exec.Post(fn) }
}

// Dismiss closes the toast for id as a user action. Unknown ids and toasts
// already closing are ignored.
func (p *Presenter) Dismiss(id string) {
	p.mu.Lock()
	var target *entry
	for _, e := range p.visible {
		if e.n.ID == id {
			target = e
			break
		}
	}
	p.mu.Unlock()

	if target != nil {
		p.close(target)
	}
}

// DismissAll closes every visible toast.
func (p *Presenter) DismissAll() {
	p.mu.Lock()
	entries := make([]*entry, len(p.visible))
	copy(entries, p.visible)
	p.mu.Unlock()

	for _, e := range entries {
		p.close(e)
	}
}

// close starts the exit transition for e and schedules acknowledgement.
func (p *Presenter) close(e *entry) {
	p.mu.Lock()
	if p.closed || e.closing || !p.isVisibleLocked(e) {
		p.mu.Unlock()
		return
	}

	e.closing = true
	e.expiresAt = time.Time{}
	if e.dismiss != nil {
		e.dismiss.Stop()
		e.dismiss = nil
	}

	immediate := p.exitDelay <= 0
	if !immediate {
		e.exit = p.clock.AfterFunc(p.exitDelay, p.deferred(func() { p.acknowledge(e) }))
	}
	snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.emit(snapshot)
	if immediate {
		p.acknowledge(e)
	}
}

func (p *Presenter) acknowledge(e *entry) {
	p.mu.Lock()
	if p.closed || !p.isVisibleLocked(e) {
		p.mu.Unlock()
		return
	}
	e.exit = nil
	id := e.n.ID
	p.mu.Unlock()

	// The store's change notification drives recompute, which drops the
	// toast from the stack.
	p.source.MarkRead(id)
}

func (p *Presenter) isVisibleLocked(e *entry) bool {
	for _, cur := range p.visible {
		if cur == e {
			return true
		}
	}
	return false
}

// Toasts returns the visible stack, oldest first.
func (p *Presenter) Toasts() []Toast {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Len returns the number of visible toasts.
func (p *Presenter) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.visible)
}

func (p *Presenter) snapshotLocked() []Toast {
	out := make([]Toast, len(p.visible))
	for i, e := range p.visible {
		out[i] = e.toast()
	}
	return out
}

// Subscribe registers fn to receive the stack after every change. The
// returned function removes the listener.
func (p *Presenter) Subscribe(fn func([]Toast)) func() {
	p.lmu.Lock()
	p.nextLID++
	id := p.nextLID
	p.listeners = append(p.listeners, listener{id: id, fn: fn})
	p.lmu.Unlock()

	return func() {
		p.lmu.Lock()
		defer p.lmu.Unlock()
		p.listeners = slices.DeleteFunc(slices.Clone(p.listeners), func(l listener) bool { return l.id == id })
	}
}

func (p *Presenter) emit(toasts []Toast) {
	p.lmu.Lock()
	ls := p.listeners
	p.lmu.Unlock()

	for _, l := range ls {
		l.fn(toasts)
	}
}

// Close cancels every timer and detaches from the store. Timer callbacks
// that were already queued become no-ops.
func (p *Presenter) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, e := range p.visible {
		e.stop()
	}
	p.visible = nil
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	p.emit(nil)
}
