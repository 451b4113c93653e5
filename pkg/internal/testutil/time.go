package testutil

import "time"

// FixedClock returns a configurable current time for deterministic tests.
type FixedClock struct {
	CurrentTime time.Time
}

// NewFixedClock creates a FixedClock at the given time.
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{CurrentTime: now}
}

// Now returns the configured current time.
func (c *FixedClock) Now() time.Time {
	return c.CurrentTime
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.CurrentTime = c.CurrentTime.Add(d)
}
