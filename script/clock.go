package script

import (
	"sync"
	"time"
)

// Clock supplies monotonic time to the controller and scheduler.
type Clock interface {
	Now() time.Time
	ElapsedSince(t time.Time) time.Duration
}

// SystemClock reads the process monotonic clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) ElapsedSince(t time.Time) time.Duration { return time.Since(t) }

// ManualClock is a Clock that only moves when told to.
// It never goes backwards: negative advances and earlier Set calls are ignored.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a ManualClock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) ElapsedSince(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Advance moves the clock forward by d and returns the new reading.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return c.now
}

// Set moves the clock to t if t is not earlier than the current reading.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t
	}
}

// FrameTimer turns successive tick timestamps into frame deltas.
type FrameTimer struct {
	last  time.Time
	valid bool
}

// Delta returns the time since the previous call, or zero on the first call
// and whenever now is earlier than the previous timestamp.
func (ft *FrameTimer) Delta(now time.Time) time.Duration {
	if !ft.valid {
		ft.last = now
		ft.valid = true
		return 0
	}
	delta := now.Sub(ft.last)
	if delta < 0 {
		return 0
	}
	ft.last = now
	return delta
}
