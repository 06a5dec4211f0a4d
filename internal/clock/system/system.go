// Package system supplies the wall clock used outside of tests.
package system

import "time"

// Clock reads the system time in UTC.
type Clock struct{}

// New returns the system clock.
func New() *Clock {
	return &Clock{}
}

// Now reports the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
