package engine

import (
	"sync"
	"testing"
	"time"
)

// fakeNow is a manually advanced wall clock. It is mutex-guarded because a
// started clock reads it from its own goroutine.
type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeNow() *fakeNow {
	return &fakeNow{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func startClock(c *DeadlineClock, d time.Duration, onTick func(int), onExpire func()) {
	// Install state without launching the real 1 Hz goroutine; tests call
	// poll directly to simulate arbitrarily late callbacks.
	c.mu.Lock()
	c.deadline = c.now().Add(d)
	c.onTick = onTick
	c.onExpire = onExpire
	c.expired = false
	c.stopped = false
	c.mu.Unlock()
}

func TestDeadlineClock_RemainingNeverNegative(t *testing.T) {
	now := newFakeNow()
	c := NewDeadlineClock(now.Now)
	startClock(c, 10*time.Second, nil, nil)

	if got := c.Remaining(); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}

	now.Advance(4 * time.Second)
	if got := c.Remaining(); got != 6 {
		t.Fatalf("expected 6, got %d", got)
	}

	now.Advance(time.Hour)
	if got := c.Remaining(); got != 0 {
		t.Fatalf("expected 0 long after deadline, got %d", got)
	}
}

func TestDeadlineClock_RemainingIndependentOfPollTiming(t *testing.T) {
	now := newFakeNow()
	c := NewDeadlineClock(now.Now)

	var ticks []int
	startClock(c, 5*time.Second, func(r int) { ticks = append(ticks, r) }, nil)

	// Simulate a throttled tab: the first poll arrives 3s late, the next
	// one 10s late. Remaining values must track the wall clock, not the
	// number of polls.
	now.Advance(3 * time.Second)
	c.poll()
	now.Advance(10 * time.Second)
	c.poll()

	if len(ticks) != 2 || ticks[0] != 2 || ticks[1] != 0 {
		t.Fatalf("expected ticks [2 0], got %v", ticks)
	}
}

func TestDeadlineClock_ExpiresExactlyOnce(t *testing.T) {
	now := newFakeNow()
	c := NewDeadlineClock(now.Now)

	expired := 0
	startClock(c, 2*time.Second, nil, func() { expired++ })

	now.Advance(5 * time.Second)
	c.poll()
	c.poll()
	c.poll()

	if expired != 1 {
		t.Fatalf("expected exactly one expiry, got %d", expired)
	}
}

func TestDeadlineClock_StopIsIdempotentAndSilencesPolls(t *testing.T) {
	now := newFakeNow()
	c := NewDeadlineClock(now.Now)

	expired := 0
	startClock(c, time.Second, nil, func() { expired++ })

	c.Stop()
	c.Stop()

	now.Advance(time.Minute)
	if done := c.poll(); !done {
		t.Fatal("poll after Stop should report the loop is finished")
	}
	if expired != 0 {
		t.Fatalf("stale poll after Stop fired expiry %d times", expired)
	}
}

func TestDeadlineClock_RealLoopExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("1 Hz wall-clock loop")
	}

	c := NewDeadlineClock(nil)
	done := make(chan struct{})
	c.Start(100*time.Millisecond, nil, func() { close(done) })
	defer c.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("expiry callback never fired")
	}
}
