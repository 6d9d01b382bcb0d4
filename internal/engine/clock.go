package engine

import (
	"sync"
	"time"
)

// TimeLabelLayout renders simulation time for agents, e.g. "Monday, 08:00 AM".
const TimeLabelLayout = "Monday, 03:04 PM"

// DefaultTickDuration is the simulated time one tick represents.
const DefaultTickDuration = 10 * time.Minute

// DefaultStart is Monday 2024-01-01 08:00.
var DefaultStart = time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)

// Clock is the simulation clock. It only moves when Advance is called.
type Clock struct {
	mu   sync.RWMutex
	now  time.Time
	tick int64
	step time.Duration
}

// NewClock creates a clock at start that advances by step per tick.
func NewClock(start time.Time, step time.Duration) *Clock {
	if step <= 0 {
		step = DefaultTickDuration
	}
	return &Clock{now: start, step: step}
}

// Now returns the current simulation time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Tick returns how many ticks have elapsed.
func (c *Clock) Tick() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tick
}

// Step returns the tick duration.
func (c *Clock) Step() time.Duration {
	return c.step
}

// Advance moves the clock forward one tick and returns the new time.
func (c *Clock) Advance() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	c.tick++
	return c.now
}

// AdvanceBy moves simulation time without counting a tick.
func (c *Clock) AdvanceBy(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Label formats the current time for agent contexts.
func (c *Clock) Label() string {
	return c.Now().Format(TimeLabelLayout)
}
