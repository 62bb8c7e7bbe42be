package actor

import "time"

// Clock provides a testable time source.
//
// Reducers should remain deterministic and must not call a Clock directly.
// Runtimes use Clock for timers and inject observations via events.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call from firing. It reports whether the timer
	// was still pending.
	Stop() bool
}

// RealClock is a production Clock implementation backed by package time.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }

// AfterFunc implements Clock.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
