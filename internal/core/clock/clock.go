// Package clock abstracts wall time and timers so timer-driven behaviour
// (toast expiry, reconnect backoff) can be driven deterministically in tests.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents the timer from firing. It reports whether the call
	// stopped the timer; false means it already fired or was stopped.
	Stop() bool
}

// Clock provides the current time and schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

var wall = clockwork.NewRealClock()

// Real is the wall Clock.
type Real struct{}

func (Real) Now() time.Time { return wall.Now() }

func (Real) AfterFunc(d time.Duration, fn func()) Timer {
	return wall.AfterFunc(d, fn)
}
