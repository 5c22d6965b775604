// Package clock abstracts time so reveal scheduling can be driven
// deterministically in tests.
package clock

import "time"

// Timer is a scheduled task that can be cancelled before it fires.
type Timer interface {
	// Stop cancels the task. It reports false if the task already fired
	// or was already stopped.
	Stop() bool
}

// Clock provides the current time and delayed tasks.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall clock.
type Real struct{}

// New returns the wall clock.
func New() Clock {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
