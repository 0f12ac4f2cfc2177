// Package domain holds the types, limits and errors shared by every layer of
// the BFF. It has no dependencies beyond the standard library.
package domain

import "time"

// Clock provides the current time. Token issuance and verification both read
// time through a Clock so expiry boundaries can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time {
	return time.Now()
}

// TokenTime returns the clock's current instant in UTC at whole-second
// precision, the resolution JWT NumericDate values carry.
func TokenTime(c Clock) time.Time {
	return c.Now().UTC().Truncate(time.Second)
}

var _ Clock = RealClock{}
