package connstate

import (
	"sort"
	"sync"
	"time"
)

// fakeClock lets tests advance virtual time deterministically instead
// of sleeping for real seconds, so the 45s Join-wait and 300s
// Leave-wait scenarios run instantly. The teacher's own simnet/simtime
// machinery applies the same discipline to every timing-sensitive test.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimerEntry
}

type fakeTimerEntry struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := &fakeTimerEntry{at: c.now.Add(d), f: f}
	c.pending = append(c.pending, e)
	return e
}

func (e *fakeTimerEntry) Stop() bool {
	already := e.stopped || e.fired
	e.stopped = true
	return !already
}

// advance moves virtual time forward by d and synchronously runs
// every due, unstopped timer in deadline order. A callback may itself
// arm a new timer; advance keeps scanning until nothing more is due.
func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.Slice(c.pending, func(i, j int) bool { return c.pending[i].at.Before(c.pending[j].at) })
		var due *fakeTimerEntry
		for _, e := range c.pending {
			if !e.fired && !e.stopped && !e.at.After(target) {
				due = e
				break
			}
		}
		c.mu.Unlock()
		if due == nil {
			return
		}
		due.fired = true
		due.f()
	}
}
