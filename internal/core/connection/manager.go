// Package connection owns the push channel for one session: dialing,
// reading frames, reconnecting with backoff and forwarding every well-formed
// frame to the event router.
package connection

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/colonyops/vitals/internal/core/clock"
	"github.com/colonyops/vitals/internal/core/eventbus"
	"github.com/colonyops/vitals/internal/core/logging"
	"github.com/colonyops/vitals/internal/core/loop"
)

const (
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 30 * time.Second
	DefaultMaxAttempts = 10
)

// Manager drives the Disconnected -> Connecting -> Connected -> Reconnecting
// state machine. Every transition runs under its mutex; router dispatch and
// retry callbacks run on the executor.
//
// Each dial attempt gets a new generation. Callbacks carry the generation
// they were started under and are dropped once it is stale, so a torn-down
// channel can never affect a newer one.
type Manager struct {
	dialer  Dialer
	router  *eventbus.Router
	exec    loop.Executor
	clock   clock.Clock
	log     zerolog.Logger
	backoff BackoffPolicy
	limiter *rate.Limiter

	mu         sync.Mutex
	state      State
	sessionID  string
	gen        uint64
	base       context.Context
	cancel     context.CancelFunc
	channel    Channel
	retryTimer clock.Timer
	policy     retry.Backoff
	attempts   int
	suppressed int
	observers  []func(from, to State)
}

// Option configures a Manager.
type Option func(*Manager)

func WithExecutor(e loop.Executor) Option {
	return func(m *Manager) { m.exec = e }
}

func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithBackoff replaces the reconnect policy.
func WithBackoff(p BackoffPolicy) Option {
	return func(m *Manager) {
		if p != nil {
			m.backoff = p
		}
	}
}

// WithMalformedLogLimit caps how many malformed-frame diagnostics are
// logged per second. Frames beyond the cap are still dropped, only
// silently, and counted into the next logged diagnostic or reported when
// the channel is torn down.
func WithMalformedLogLimit(perSecond, burst int) Option {
	return func(m *Manager) {
		m.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewManager returns a manager in the Disconnected state.
func NewManager(dialer Dialer, router *eventbus.Router, opts ...Option) *Manager {
	m := &Manager{
		dialer:  dialer,
		router:  router,
		exec:    loop.Inline{},
		clock:   clock.Real{},
		log:     zerolog.Nop(),
		backoff: ExponentialBackoff(DefaultBaseDelay, DefaultMaxDelay, DefaultMaxAttempts, 0),
		limiter: rate.NewLimiter(rate.Limit(1), 5),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID returns the session of the current or last connection.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Attempts returns the number of dial attempts since the last successful
// dial.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// OnStateChange registers fn to observe transitions. Observers run under the
// manager lock, in transition order, and must not call back into the
// manager.
func (m *Manager) OnStateChange(fn func(from, to State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Connect opens the push channel for sessionID. It only acts from
// Disconnected; in any other state it returns the current state unchanged.
// ctx bounds the whole connection lifetime including reconnects.
func (m *Manager) Connect(ctx context.Context, sessionID string) State {
	m.mu.Lock()
	if m.state != Disconnected {
		state, current := m.state, m.sessionID
		m.mu.Unlock()
		if sessionID != current {
			m.log.Warn().
				Str("session_id", current).
				Str("requested_session_id", sessionID).
				Stringer("state", state).
				Msg("connect ignored, already bound to another session")
		}
		return state
	}

	m.sessionID = sessionID
	m.base = ctx
	m.attempts = 0
	m.policy = m.backoff()
	m.transitionLocked(Connecting)
	start := m.dialLocked()
	m.mu.Unlock()

	start()
	return Connecting
}

// Disconnect tears down the channel, cancels any dial and pending retry,
// and settles at Disconnected. Safe to call in any state, any number of
// times.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	ch, suppressed := m.teardownLocked()
	from := m.transitionLocked(Disconnected)
	m.mu.Unlock()

	closeChannel(ch)
	m.reportSuppressed(suppressed)
	if from != Disconnected {
		m.log.Debug().Str("session_id", m.SessionID()).Msg("disconnected")
	}
}

// teardownLocked stops the retry timer, cancels the attempt context and
// detaches the channel, which the caller closes outside the lock. It also
// hands back the count of malformed frames dropped without a diagnostic.
func (m *Manager) teardownLocked() (Channel, int) {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	ch := m.channel
	m.channel = nil
	suppressed := m.suppressed
	m.suppressed = 0
	return ch, suppressed
}

func (m *Manager) reportSuppressed(n int) {
	if n == 0 {
		return
	}
	m.log.Warn().Int("suppressed", n).Msg("dropped malformed frames without logging")
}

func (m *Manager) transitionLocked(to State) State {
	from := m.state
	m.state = to
	if from != to {
		for _, fn := range m.observers {
			fn(from, to)
		}
	}
	return from
}

// dialLocked prepares a new attempt under a fresh generation. The returned
// function launches it and must be called after the lock is released.
func (m *Manager) dialLocked() func() {
	m.gen++
	m.attempts++
	gen := m.gen
	sessionID := m.sessionID

	ctx, cancel := context.WithCancel(m.base)
	m.cancel = cancel

	m.log.Debug().Str("session_id", sessionID).Int("attempt", m.attempts).Msg("dialing")

	return func() {
		go func() {
			ch, err := m.dialer.Dial(ctx, sessionID)
			if err != nil {
				m.post(func() { m.fail(gen, err) })
				return
			}
			if !m.post(func() { m.established(ctx, gen, ch) }) {
				closeChannel(ch)
			}
		}()
	}
}

func (m *Manager) post(fn func()) bool {
	return m.exec.Post(fn)
}

func (m *Manager) established(ctx context.Context, gen uint64, ch Channel) {
	m.mu.Lock()
	if gen != m.gen || m.state != Connecting {
		m.mu.Unlock()
		closeChannel(ch)
		return
	}
	m.channel = ch
	m.attempts = 0
	m.policy = m.backoff()
	m.transitionLocked(Connected)
	sessionID := m.sessionID
	m.mu.Unlock()

	m.log.Info().Str("session_id", sessionID).Msg("connected")

	go m.read(ctx, gen, ch)
}

// read pumps frames in receipt order until the channel fails. Post blocks
// until the frame is queued, so frames are handled one at a time.
func (m *Manager) read(ctx context.Context, gen uint64, ch Channel) {
	for {
		data, err := ch.Receive(ctx)
		if err != nil {
			m.post(func() { m.fail(gen, err) })
			return
		}
		if !m.post(func() { m.handleFrame(gen, data) }) {
			return
		}
	}
}

func (m *Manager) handleFrame(gen uint64, data []byte) {
	m.mu.Lock()
	live := gen == m.gen && m.state == Connected
	base := m.base
	m.mu.Unlock()
	if !live {
		return
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		m.malformed("invalid json", data, err)
		return
	}
	if env.Type == "" {
		m.malformed("missing type", data, nil)
		return
	}

	m.log.Trace().
		Ctx(logging.WithEventType(base, env.Type)).
		Int("bytes", len(data)).
		Msg("frame received")
	m.router.Dispatch(eventbus.Event(env.Type), env.Payload)
}

func (m *Manager) malformed(reason string, data []byte, err error) {
	m.mu.Lock()
	if !m.limiter.Allow() {
		m.suppressed++
		m.mu.Unlock()
		return
	}
	suppressed := m.suppressed
	m.suppressed = 0
	m.mu.Unlock()

	const maxSample = 256
	sample := data
	if len(sample) > maxSample {
		sample = sample[:maxSample]
	}

	evt := m.log.Warn().
		Str("reason", reason).
		Bytes("frame", sample).
		Int("suppressed", suppressed)
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("dropping malformed frame")
}

// fail handles a dial or read failure for gen: it schedules a retry from
// the backoff policy or gives up and settles at Disconnected.
func (m *Manager) fail(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen || (m.state != Connecting && m.state != Connected) {
		m.mu.Unlock()
		return
	}

	ch, suppressed := m.teardownLocked()
	sessionID, attempts := m.sessionID, m.attempts
	defer m.reportSuppressed(suppressed)

	if m.base.Err() != nil {
		m.gen++
		m.transitionLocked(Disconnected)
		m.mu.Unlock()

		closeChannel(ch)
		m.log.Debug().Str("session_id", sessionID).Msg("connection context done")
		return
	}

	delay, stop := m.policy.Next()
	if stop {
		m.gen++
		m.transitionLocked(Disconnected)
		m.mu.Unlock()

		closeChannel(ch)
		m.log.Error().
			Err(cause).
			Str("session_id", sessionID).
			Int("attempts", attempts).
			Msg(string(eventbus.EventConnectionFailed))
		m.router.DispatchConnectionFailed(eventbus.ConnectionFailedPayload{
			SessionID: sessionID,
			Attempts:  attempts,
			Err:       cause,
		})
		return
	}

	m.transitionLocked(Reconnecting)
	m.retryTimer = m.clock.AfterFunc(delay, func() {
		m.post(func() { m.retry(gen) })
	})
	m.mu.Unlock()

	closeChannel(ch)
	m.log.Warn().
		Err(cause).
		Str("session_id", sessionID).
		Dur("delay", delay).
		Msg("connection lost, reconnecting")
}

func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != Reconnecting {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	m.transitionLocked(Connecting)
	start := m.dialLocked()
	m.mu.Unlock()

	start()
}

func closeChannel(ch Channel) {
	if ch != nil {
		_ = ch.Close()
	}
}
