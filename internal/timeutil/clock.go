// Package timeutil provides a testable abstraction over wall-clock time and a
// pacer that replays timestamped captures at their recorded speed.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration

	// Sleep pauses for the specified duration.
	Sleep(d time.Duration)
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// Sleep pauses the current goroutine for at least the duration d.
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// MockClock is a manually controlled clock for testing. Sleep advances the
// mocked time instead of blocking.
type MockClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set sets the mock clock to a specific time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the mock clock forward by the given duration.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Since returns the duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Sleep records the duration and advances the clock by it.
func (c *MockClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

// Sleeps returns all recorded sleep durations.
func (c *MockClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]time.Duration, len(c.sleeps))
	copy(result, c.sleeps)
	return result
}

// Pacer releases capture timestamps no faster than they were recorded.
// The first call to Wait anchors capture time to the clock.
type Pacer struct {
	clock   Clock
	started bool
	wall0   time.Time
	ts0Ms   float64
}

// NewPacer returns a pacer driven by clock. A nil clock uses RealClock.
func NewPacer(clock Clock) *Pacer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Pacer{clock: clock}
}

// Wait blocks until the wall time elapsed since the first call is at least
// the capture time elapsed between the first timestamp and tsMs.
func (p *Pacer) Wait(tsMs float64) {
	if !p.started {
		p.started = true
		p.wall0 = p.clock.Now()
		p.ts0Ms = tsMs
		return
	}
	due := time.Duration((tsMs - p.ts0Ms) * float64(time.Millisecond))
	if ahead := due - p.clock.Since(p.wall0); ahead > 0 {
		p.clock.Sleep(ahead)
	}
}
