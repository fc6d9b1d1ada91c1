package domain

import "time"

// ControlSignals are the pending control requests for a destination.
// A repeated skip is a no-op; a repeated seek overwrites the previous delta.
type ControlSignals struct {
	SkipRequested bool
	SeekDelta     time.Duration
}

// Reset clears all pending signals.
func (c *ControlSignals) Reset() {
	c.SkipRequested = false
	c.SeekDelta = 0
}

// TakeSeek returns the pending seek delta and clears it.
func (c *ControlSignals) TakeSeek() time.Duration {
	d := c.SeekDelta
	c.SeekDelta = 0
	return d
}
