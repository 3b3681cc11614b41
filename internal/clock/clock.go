// Package clock provides the "current instant" used by every date calculation.
package clock

import "time"

// Clock returns the current instant.
type Clock func() time.Time

// System reads the wall clock.
func System() Clock {
	return time.Now
}

// Fixed always returns t. Used to pin "now" in tests.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// OrSystem returns c, or the wall clock when c is nil.
func OrSystem(c Clock) Clock {
	if c == nil {
		return System()
	}
	return c
}
