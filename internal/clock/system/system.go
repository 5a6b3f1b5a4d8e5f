// Package system supplies the clocks used to stamp runs and outputs.
package system

import "time"

// Clock reads the wall clock in UTC.
type Clock struct{}

// New returns the wall clock.
func New() Clock {
	return Clock{}
}

// Now implements crawler.Clock.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant.
type Fixed time.Time

// Now implements crawler.Clock.
func (f Fixed) Now() time.Time {
	return time.Time(f)
}
