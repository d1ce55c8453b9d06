// Package clock abstracts time so the scheduler's cadences and reconnect
// backoff can run against simulated time in tests.
package clock

import "time"

// Clock is the subset of the time package the daemon's loops use.
type Clock interface {
	Now() time.Time

	// After fires once after d.
	After(d time.Duration) <-chan time.Time

	// NewTimer returns a stoppable one-shot timer.
	NewTimer(d time.Duration) Timer
}

// Timer is a stoppable one-shot timer.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) NewTimer(d time.Duration) Timer { return realTimer{time.NewTimer(d)} }

type realTimer struct{ t *time.Timer }

func (r realTimer) C() <-chan time.Time { return r.t.C }

func (r realTimer) Stop() bool { return r.t.Stop() }
