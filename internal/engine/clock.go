package engine

import (
	"sync"
	"time"
)

// DeadlineClock converts a duration into an absolute target timestamp and
// reports remaining whole seconds by re-reading the wall clock on every call.
// Remaining time is never derived by decrementing a counter on a timer tick:
// tick intervals drift and stall (tab throttling on the client, GC pauses and
// scheduler delay here), wall-clock deltas do not.
type DeadlineClock struct {
	mu       sync.Mutex
	now      func() time.Time
	deadline time.Time
	onTick   func(remaining int)
	onExpire func()
	expired  bool
	stopped  bool
	done     chan struct{}
}

// NewDeadlineClock creates a stopped clock. now may be nil (time.Now).
func NewDeadlineClock(now func() time.Time) *DeadlineClock {
	if now == nil {
		now = time.Now
	}
	return &DeadlineClock{now: now}
}

// Start records deadline = now + d and begins a 1 Hz polling loop. onTick is
// invoked with the freshly computed remaining seconds; onExpire fires exactly
// once when remaining first reaches 0. Either callback may be nil.
func (c *DeadlineClock) Start(d time.Duration, onTick func(int), onExpire func()) {
	c.mu.Lock()
	c.deadline = c.now().Add(d)
	c.onTick = onTick
	c.onExpire = onExpire
	c.expired = false
	c.stopped = false
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.run(done)
}

func (c *DeadlineClock) run(done chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if c.poll() {
				return
			}
		}
	}
}

// poll computes the remaining time once and dispatches callbacks. Returns
// true when the loop should end. Extracted so tests can drive the clock
// without real ticks; correctness must not depend on how late a tick fires.
func (c *DeadlineClock) poll() bool {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return true
	}
	remaining := c.remainingLocked()
	tick := c.onTick
	var expire func()
	if remaining == 0 && !c.expired {
		c.expired = true
		expire = c.onExpire
	}
	c.mu.Unlock()

	if tick != nil {
		tick(remaining)
	}
	if expire != nil {
		expire()
		return true
	}
	return false
}

// Remaining returns max(0, floor(deadline-now)) in seconds.
func (c *DeadlineClock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

func (c *DeadlineClock) remainingLocked() int {
	if c.deadline.IsZero() {
		return 0
	}
	left := c.deadline.Sub(c.now())
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// Stop cancels the polling loop. Idempotent. Must be called on every phase
// exit so a stale timer can never fire into the wrong phase.
func (c *DeadlineClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	if c.done != nil {
		close(c.done)
	}
}
