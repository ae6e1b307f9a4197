package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Fake is a manually advanced Clock on top of a clockwork fake clock.
// Callbacks run synchronously on the goroutine calling Advance, in deadline
// order, with ties broken by creation order.
type Fake struct {
	clock *clockwork.FakeClock

	mu     sync.Mutex
	seq    uint64
	timers []*fakeTimer
}

// NewFake returns a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{clock: clockwork.NewFakeClockAt(start)}
}

type fakeTimer struct {
	owner *Fake
	seq   uint64
	when  time.Time
	timer clockwork.Timer
	fn    func()
}

func (t *fakeTimer) Stop() bool {
	t.timer.Stop()

	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	return t.owner.removeLocked(t)
}

func (f *Fake) Now() time.Time {
	return f.clock.Now()
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	t := &fakeTimer{
		owner: f,
		seq:   f.seq,
		when:  f.clock.Now().Add(d),
		timer: f.clock.NewTimer(d),
		fn:    fn,
	}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer whose deadline
// falls within the window. Timers scheduled by a firing callback also fire
// if their deadline is within the window.
func (f *Fake) Advance(d time.Duration) {
	target := f.clock.Now().Add(d)

	for {
		f.mu.Lock()
		next := f.nextDueLocked(target)
		if next != nil {
			f.removeLocked(next)
		}
		f.mu.Unlock()
		if next == nil {
			break
		}

		if step := next.when.Sub(f.clock.Now()); step > 0 {
			f.clock.Advance(step)
		}
		<-next.timer.Chan()
		next.fn()
	}

	if rest := target.Sub(f.clock.Now()); rest > 0 {
		f.clock.Advance(rest)
	}
}

// Pending returns the number of timers that have not fired or been stopped.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

func (f *Fake) nextDueLocked(target time.Time) *fakeTimer {
	var next *fakeTimer
	for _, t := range f.timers {
		if t.when.After(target) {
			continue
		}
		if next == nil || t.when.Before(next.when) || (t.when.Equal(next.when) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

func (f *Fake) removeLocked(t *fakeTimer) bool {
	for i, cur := range f.timers {
		if cur == t {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return true
		}
	}
	return false
}
