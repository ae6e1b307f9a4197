// Package vitals wires the notification subsystem for one session: the
// event router, the notification store, the toast presenter and the
// connection manager, all serialized on one loop.
package vitals

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/vitals/internal/core/clock"
	"github.com/colonyops/vitals/internal/core/config"
	"github.com/colonyops/vitals/internal/core/connection"
	"github.com/colonyops/vitals/internal/core/eventbus"
	"github.com/colonyops/vitals/internal/core/logging"
	"github.com/colonyops/vitals/internal/core/loop"
	"github.com/colonyops/vitals/internal/core/notify"
	"github.com/colonyops/vitals/internal/core/toast"
)

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrClosed         = errors.New("session closed")
)

// Option configures a Session.
type Option func(*options)

type options struct {
	clock  clock.Clock
	exec   loop.Executor
	logger zerolog.Logger
	ids    func() string
}

// WithClock injects the clock used for timestamps, toast timers and
// reconnect delays.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithExecutor runs the session on e instead of its own loop. The caller
// owns e's lifecycle.
func WithExecutor(e loop.Executor) Option {
	return func(o *options) { o.exec = e }
}

// WithLogger sets the base logger; components log through sub-loggers of it.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithIDGenerator overrides notification id generation.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.ids = fn }
}

// Session is one client's notification subsystem. Consumer methods are safe
// to call from any goroutine except from inside router handlers and store or
// presenter listeners, which already run on the session loop.
type Session struct {
	router    *eventbus.Router
	store     *notify.Store
	presenter *toast.Presenter
	conn      *connection.Manager

	exec    loop.Executor
	ownLoop *loop.Loop
	log     zerolog.Logger

	mu        sync.Mutex
	started   bool
	closed    bool
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewSession builds a session from cfg. Nothing connects until Start.
func NewSession(cfg *config.Config, dialer connection.Dialer, opts ...Option) *Session {
	o := options{
		clock:  clock.Real{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{log: logging.Sub(o.logger, "session")}

	if o.exec != nil {
		s.exec = o.exec
	} else {
		s.ownLoop = loop.New(256, loop.WithLogger(logging.Sub(o.logger, "loop")))
		s.exec = s.ownLoop
	}

	s.router = eventbus.New()
	eventbus.RegisterDebugLogger(s.router, logging.Sub(o.logger, "router"), cfg.Log.DebugEvents...)

	storeOpts := []notify.Option{
		notify.WithClock(o.clock),
		notify.WithLogger(logging.Sub(o.logger, "store")),
	}
	if o.ids != nil {
		storeOpts = append(storeOpts, notify.WithIDGenerator(o.ids))
	}
	s.store = notify.NewStore(s.router, storeOpts...)

	s.presenter = toast.New(s.store,
		toast.WithClock(o.clock),
		toast.WithExecutor(s.exec),
		toast.WithLogger(logging.Sub(o.logger, "toast")),
		toast.WithMaxVisible(cfg.Toasts.MaxVisible),
		toast.WithDuration(cfg.Toasts.Duration),
		toast.WithExitDelay(cfg.Toasts.ExitDelay),
	)

	s.conn = connection.NewManager(dialer, s.router,
		connection.WithClock(o.clock),
		connection.WithExecutor(s.exec),
		connection.WithLogger(logging.Sub(o.logger, "connection")),
		connection.WithBackoff(connection.ExponentialBackoff(
			cfg.Reconnect.BaseDelay,
			cfg.Reconnect.MaxDelay,
			uint64(max(cfg.Reconnect.MaxAttempts, 0)),
			cfg.Reconnect.Jitter,
		)),
	)

	return s
}

// Start runs the session loop and connects the push channel for sessionID.
// ctx bounds the connection; Close ends everything.
func (s *Session) Start(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true

	ctx = logging.WithSessionID(ctx, sessionID)
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	if s.ownLoop != nil {
		go s.ownLoop.Run(ctx)
	}

	state := s.conn.Connect(ctx, sessionID)
	s.log.Info().Ctx(ctx).Stringer("state", state).Msg("session started")
	return nil
}

// Close tears the session down: the connection first so no new frames
// arrive, then toast timers, store subscriptions and records, router
// registrations and finally the loop. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		started, cancel := s.started, s.cancel
		s.mu.Unlock()

		s.conn.Disconnect()

		teardown := func() {
			s.presenter.Close()
			s.store.Close()
			s.store.Clear()
			s.router.Close()
		}
		if s.ownLoop != nil && !started {
			teardown()
		} else if !loop.Call(s.exec, teardown) {
			teardown()
		}

		if cancel != nil {
			cancel()
		}
		if s.ownLoop != nil {
			s.ownLoop.Stop()
		}
		s.log.Debug().Msg("session closed")
	})
}

// run executes fn on the session loop and waits for it. Before Start the
// owned loop is not running yet, so fn runs directly.
func (s *Session) run(fn func()) {
	s.mu.Lock()
	closed, started := s.closed, s.started
	s.mu.Unlock()

	if closed {
		return
	}
	if s.ownLoop != nil && !started {
		fn()
		return
	}
	loop.Call(s.exec, fn)
}

// AddNotification creates a record and returns its id, or "" once the
// session is closed.
func (s *Session) AddNotification(title, message string, category notify.Category) string {
	var id string
	s.run(func() { id = s.store.Add(title, message, category) })
	return id
}

func (s *Session) RemoveNotification(id string) {
	s.run(func() { s.store.Remove(id) })
}

func (s *Session) MarkAsRead(id string) {
	s.run(func() { s.store.MarkRead(id) })
}

func (s *Session) MarkAllAsRead() {
	s.run(s.store.MarkAllRead)
}

func (s *Session) ClearNotifications() {
	s.run(s.store.Clear)
}

// DismissToast closes a visible toast as if the user dismissed it.
func (s *Session) DismissToast(id string) {
	s.run(func() { s.presenter.Dismiss(id) })
}

func (s *Session) DismissAllToasts() {
	s.run(s.presenter.DismissAll)
}

// Notifications returns every record in insertion order.
func (s *Session) Notifications() []notify.Notification {
	return s.store.List()
}

func (s *Session) UnreadCount() int {
	return s.store.UnreadCount()
}

// Toasts returns the visible toast stack.
func (s *Session) Toasts() []toast.Toast {
	return s.presenter.Toasts()
}

// State returns the connection state.
func (s *Session) State() connection.State {
	return s.conn.State()
}

// OnChange registers fn to run after every record or toast change. It runs
// on the session loop and must not call consumer methods.
func (s *Session) OnChange(fn func()) func() {
	unsubStore := s.store.Subscribe(fn)
	unsubToasts := s.presenter.Subscribe(func([]toast.Toast) { fn() })
	return func() {
		unsubStore()
		unsubToasts()
	}
}

// OnStateChange registers fn to observe connection state transitions.
func (s *Session) OnStateChange(fn func(from, to connection.State)) {
	s.conn.OnStateChange(fn)
}

// OnConnectionFailed registers fn to run when reconnecting gives up.
func (s *Session) OnConnectionFailed(fn func(eventbus.ConnectionFailedPayload)) eventbus.Subscription {
	return s.router.SubscribeConnectionFailed(fn)
}

// Router exposes the event router for additional subscribers.
func (s *Session) Router() *eventbus.Router {
	return s.router
}

// NextExpiry returns the earliest toast expiry, or zero when no toast is
// counting down. Renderers use it to schedule redraws.
func (s *Session) NextExpiry() time.Time {
	var next time.Time
	for _, t := range s.presenter.Toasts() {
		if t.ExpiresAt.IsZero() {
			continue
		}
		if next.IsZero() || t.ExpiresAt.Before(next) {
			next = t.ExpiresAt
		}
	}
	return next
}
