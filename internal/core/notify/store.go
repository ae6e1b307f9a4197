package notify

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/colonyops/vitals/internal/core/clock"
	"github.com/colonyops/vitals/internal/core/eventbus"
)

// Store is the single authoritative collection of notification records for
// a session. Records keep insertion order. All mutations go through the
// store's methods; listeners are told about every effective change.
type Store struct {
	mu     sync.RWMutex
	items  []Notification
	closed bool

	clock clock.Clock
	newID func() string
	log   zerolog.Logger

	router *eventbus.Router
	subs   []eventbus.Subscription

	lmu       sync.Mutex
	listeners []listener
	nextLID   uint64
}

type listener struct {
	id uint64
	fn func()
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for CreatedAt and ReadAt.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDGenerator overrides id generation. Generated ids must be unique for
// the lifetime of the store.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithLogger sets the store logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore creates an empty store. When router is non-nil the store
// subscribes to the reminder and insight events and adds one record per
// reminder or insight received.
func NewStore(router *eventbus.Router, opts ...Option) *Store {
	s := &Store{
		clock: clock.Real{},
		newID: uuid.NewString,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if router != nil {
		s.bind(router)
	}
	return s
}

func (s *Store) bind(router *eventbus.Router) {
	s.router = router
	s.subs = []eventbus.Subscription{
		router.SubscribeReminders(func(reminders []eventbus.Reminder) {
			for _, r := range reminders {
				s.AddDraft(FromReminder(r))
			}
		}),
		router.SubscribeInsights(func(insights []eventbus.Insight) {
			for _, i := range insights {
				s.AddDraft(FromInsight(i))
			}
		}),
		router.SubscribeNewReminder(func(r eventbus.Reminder) {
			s.AddDraft(FromReminder(r))
		}),
		router.SubscribeNewInsight(func(i eventbus.Insight) {
			s.AddDraft(FromInsight(i))
		}),
	}
}

// Add appends a new unread record and returns its id. It returns "" if the
// store has been closed.
func (s *Store) Add(title, message string, category Category) string {
	return s.AddDraft(Draft{Title: title, Message: message, Category: category})
}

// AddDraft is Add for a prepared Draft.
func (s *Store) AddDraft(d Draft) string {
	if !d.Category.Valid() {
		d.Category = CategoryInfo
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ""
	}
	n := Notification{
		ID:        s.newID(),
		Title:     d.Title,
		Message:   d.Message,
		Category:  d.Category,
		CreatedAt: s.clock.Now(),
	}
	s.items = append(s.items, n)
	s.mu.Unlock()

	s.log.Debug().Str("id", n.ID).Str("category", string(n.Category)).Msg("notification added")
	s.notify()
	return n.ID
}

// Remove deletes the record with id. Unknown ids are ignored.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.items = slices.Delete(s.items, idx, idx+1)
	s.mu.Unlock()

	s.notify()
}

// MarkRead marks the record with id as read. Unknown or already read ids
// are ignored.
func (s *Store) MarkRead(id string) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 || s.items[idx].Read {
		s.mu.Unlock()
		return
	}
	s.markLocked(idx)
	s.mu.Unlock()

	s.notify()
}

// MarkAllRead marks every record as read.
func (s *Store) MarkAllRead() {
	s.mu.Lock()
	changed := false
	for i := range s.items {
		if !s.items[i].Read {
			s.markLocked(i)
			changed = true
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

func (s *Store) markLocked(idx int) {
	now := s.clock.Now()
	s.items[idx].Read = true
	s.items[idx].ReadAt = &now
}

// Clear removes every record.
func (s *Store) Clear() {
	s.mu.Lock()
	if len(s.items) == 0 {
		s.mu.Unlock()
		return
	}
	s.items = nil
	s.mu.Unlock()

	s.notify()
}

// List returns a copy of all records in insertion order.
func (s *Store) List() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Unread returns the unread records in insertion order.
func (s *Store) Unread() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Notification, 0, len(s.items))
	for _, n := range s.items {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

// Get returns the record with id.
func (s *Store) Get(id string) (Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return Notification{}, false
	}
	return s.items[idx], true
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// UnreadCount returns the number of unread records.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.items {
		if !n.Read {
			count++
		}
	}
	return count
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.items, func(n Notification) bool { return n.ID == id })
}

// Subscribe registers fn to run after every effective change. The returned
// function removes the listener and is safe to call more than once.
func (s *Store) Subscribe(fn func()) func() {
	s.lmu.Lock()
	s.nextLID++
	id := s.nextLID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		s.listeners = slices.DeleteFunc(slices.Clone(s.listeners), func(l listener) bool { return l.id == id })
	}
}

func (s *Store) notify() {
	s.lmu.Lock()
	ls := s.listeners
	s.lmu.Unlock()

	for _, l := range ls {
		l.fn()
	}
}

// Close detaches the store from the router and makes later Add calls
// no-ops. Existing records stay readable until Clear.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	router, subs := s.router, s.subs
	s.subs = nil
	s.mu.Unlock()

	if router != nil {
		for _, sub := range subs {
			router.Unsubscribe(sub)
		}
	}
}
