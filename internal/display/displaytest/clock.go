// Package displaytest provides in-memory doubles for exercising display sessions.
package displaytest

import (
	"sync"
	"time"

	"github.com/tamias-pos/customer-display/internal/display"
)

// Clock is a manually advanced display.Clock.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) NewTimer(d time.Duration) display.Timer {
	return c.add(d, nil)
}

func (c *Clock) AfterFunc(d time.Duration, f func()) display.Timer {
	return c.add(d, f)
}

func (c *Clock) add(d time.Duration, f func()) *timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{
		clock:    c,
		deadline: c.now.Add(d),
		c:        make(chan time.Time, 1),
		f:        f,
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and fires every timer that became due.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var due []*timer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.deadline.After(now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		if t.f != nil {
			t.f()
			continue
		}
		t.c <- now
	}
}

// Pending counts timers that are neither stopped nor fired.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type timer struct {
	clock    *Clock
	deadline time.Time
	c        chan time.Time
	f        func()
	stopped  bool
	fired    bool
}

func (t *timer) C() <-chan time.Time {
	if t.f != nil {
		return nil
	}
	return t.c
}

func (t *timer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}
