// Package clock lets the control loop wait without tying tests to real time.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	// Sleep blocks the caller for d.
	Sleep(d time.Duration)
	// NewTimer sends the current time on the returned channel once d has elapsed.
	// stop releases the timer and reports whether it had not fired yet.
	NewTimer(d time.Duration) (c <-chan time.Time, stop func() bool)
}

type RealClock struct{}

func NewRealClock() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

func (c *RealClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (c *RealClock) NewTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// FakeClock never blocks: every wait advances the fake time immediately and is recorded.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waits   []time.Duration
	onWait  func(d time.Duration)
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{current: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) Sleep(d time.Duration) {
	c.advance(d)
}

// NewTimer fires at once. Its stop func always reports false.
func (c *FakeClock) NewTimer(d time.Duration) (<-chan time.Time, func() bool) {
	ch := make(chan time.Time, 1)
	ch <- c.advance(d)
	return ch, func() bool { return false }
}

// OnWait registers a hook called after every Sleep or NewTimer.
func (c *FakeClock) OnWait(fn func(d time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onWait = fn
}

// Waits returns every duration waited for, in order.
func (c *FakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

func (c *FakeClock) advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.waits = append(c.waits, d)
	now := c.current
	hook := c.onWait
	c.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	return now
}
