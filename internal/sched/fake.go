package sched

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a manual clock. By default After advances the clock by the
// requested duration and fires immediately, so a single loop runs as fast
// as the CPU allows while observing simulated time.
//
// Goroutines that share one clock must call Share first. After then queues
// each waiter, and time only moves once every sharing goroutine is blocked
// on the clock.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	parties int
	waiters []waiter
}

type waiter struct {
	at time.Time
	ch chan time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.parties == 0 {
		c.now = c.now.Add(d)
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, waiter{at: c.now.Add(d), ch: ch})
	c.release()
	return ch
}

// Share switches the clock to lockstep mode for n goroutines.
func (c *FakeClock) Share(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parties = n
	c.release()
}

// Leave removes a finished goroutine from the lockstep group.
func (c *FakeClock) Leave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.parties > 1 {
		c.parties--
	}
	c.release()
}

// release moves time to the earliest deadline and fires every waiter due
// by then, once all parties are waiting.
func (c *FakeClock) release() {
	if len(c.waiters) == 0 || len(c.waiters) < c.parties {
		return
	}
	sort.SliceStable(c.waiters, func(i, j int) bool { return c.waiters[i].at.Before(c.waiters[j].at) })
	if at := c.waiters[0].at; at.After(c.now) {
		c.now = at
	}
	c.fire()
}

func (c *FakeClock) fire() {
	pending := c.waiters[:0]
	for _, w := range c.waiters {
		if w.at.After(c.now) {
			pending = append(pending, w)
			continue
		}
		w.ch <- c.now
	}
	c.waiters = pending
}

// Advance moves the clock forward, simulating work that took d. In
// lockstep mode waiters that become due fire.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.fire()
}
