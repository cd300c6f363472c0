// Package permit implements the activation-counting primitive shared by
// passive background tasks (spec.md §4.8): a use counter that lets a
// streaming façade suspend work when nobody holds a reason to keep it
// running, and resume the instant someone does.
package permit

import "sync"

// Counter is a reference count with edge-triggered wakeups on the 0→n>0
// and n>0→0 transitions. The zero value is not usable; construct one with
// NewActivated or NewDeactivated.
type Counter struct {
	mu       sync.Mutex
	n        int
	acquired chan struct{} // closed on every 0 -> n>0 transition, replaced on the next n>0 -> 0
	dropped  chan struct{} // closed on every n>0 -> 0 transition, replaced on the next 0 -> n>0
}

// NewActivated returns a Counter that starts with one active permit held.
func NewActivated() *Counter {
	c := &Counter{n: 1}
	c.dropped = make(chan struct{})
	c.acquired = closedChan()
	return c
}

// NewDeactivated returns a Counter with no active permits.
func NewDeactivated() *Counter {
	c := &Counter{n: 0}
	c.acquired = make(chan struct{})
	c.dropped = closedChan()
	return c
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Permit is a held activation; Drop releases it exactly once.
type Permit struct {
	c        *Counter
	released bool
}

// Activate takes out one permit, firing AcquiredUsers waiters if this is
// the 0→n>0 transition.
func (c *Counter) Activate() *Permit {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	if c.n == 1 {
		close(c.acquired)
		c.dropped = make(chan struct{})
	}
	return &Permit{c: c}
}

// deactivate releases one permit, firing DroppedUsers waiters if this is
// the n>0→0 transition. Calling it more times than Activate was called
// panics, mirroring a reference-count underflow.
func (c *Counter) deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == 0 {
		panic("permit: Counter deactivated more times than activated")
	}
	c.n--
	if c.n == 0 {
		close(c.dropped)
		c.acquired = make(chan struct{})
	}
}

// Drop releases the permit. Safe to call more than once; only the first
// call has an effect.
func (p *Permit) Drop() {
	if p.released {
		return
	}
	p.released = true
	p.c.deactivate()
}

// Count reports the current number of active permits.
func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// AcquiredUsers returns a channel that is already closed while the count
// is above zero, and otherwise closes at the next transition from 0 to
// n>0. The n>0 to 0 transition installs a fresh channel, so callers must
// re-call AcquiredUsers after each wakeup to wait for the next one.
func (c *Counter) AcquiredUsers() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired
}

// DroppedUsers returns a channel that is already closed while the count
// is zero, and otherwise closes at the next transition from n>0 to 0. The
// 0 to n>0 transition installs a fresh channel, so callers must re-call
// DroppedUsers after each wakeup to wait for the next one.
func (c *Counter) DroppedUsers() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
