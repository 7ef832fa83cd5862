package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic time source for tests: every call to Now
// advances a fixed step from a fixed epoch, so measured durations are
// reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	epoch time.Time
	step  time.Duration
	ticks int64
}

// NewStepClock creates a clock that starts at the Unix epoch and advances
// step per call.
//
// The first call to Now() returns the epoch.
func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{epoch: time.Unix(0, 0).UTC(), step: step}
}

// Now returns the current time and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.epoch.Add(time.Duration(c.ticks) * c.step)
	c.ticks++
	return t
}

// Ticks returns how many times Now has been called.
func (c *StepClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock to the epoch.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
