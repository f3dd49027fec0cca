// Package clock narrows clockwork to what the reservation core needs: an
// injectable source of "now" so date validation and status derivation can be
// tested against arbitrary dates.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

type Clock = clockwork.Clock

// New returns the real wall clock.
func New() Clock {
	return clockwork.NewRealClock()
}

// NewFakeAt returns a fake clock frozen at t. Tests advance it explicitly.
func NewFakeAt(t time.Time) *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(t)
}

// Today returns the clock's current date truncated to UTC midnight. All
// "is this in the past" comparisons in the core use this, never time.Now.
func Today(c Clock) time.Time {
	now := c.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
