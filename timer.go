package connstate

import (
	"sync"
	"time"

	"github.com/glycerine/idem"
)

// oneShotTimer models the Join-wait and Leave-wait timers. It is
// restartable, idempotent to cancel, and tolerates a callback the
// runtime already queued before cancel fired: the same tolerance the
// teacher's per-circuit watchdog loop gives a reconnect tick racing
// with Halt.ReqStop (tube/watchdog.go), which re-checks its own halt
// channel before acting rather than trusting that Stop() dequeued the
// pending work.
type oneShotTimer struct {
	mu         sync.Mutex
	clock      Clock
	underlying Timer
	cancel     *idem.IdemCloseChan // non-nil iff armed
}

func newOneShotTimer(clock Clock) *oneShotTimer {
	return &oneShotTimer{clock: clock}
}

// armed reports whether the timer is currently scheduled.
func (t *oneShotTimer) armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// arm schedules fire to run after d. It is a programmer error to arm
// an already-armed timer.
func (t *oneShotTimer) arm(d time.Duration, fire func()) {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		panic("connstate: attempt to arm an already-armed timer")
	}
	cancel := idem.NewIdemCloseChan()
	t.cancel = cancel
	t.mu.Unlock()

	t.underlying = t.clock.AfterFunc(d, func() {
		t.mu.Lock()
		if cancel.IsClosed() {
			// cancel() won the race with the runtime queueing this
			// callback. Tolerate it silently rather than acting on
			// state the cancel already moved past.
			t.mu.Unlock()
			return
		}
		// one-shot: this firing disarms the timer, same as cancelTimer
		// would, so armed() reports false again once the callback runs.
		if t.cancel == cancel {
			t.cancel = nil
		}
		t.mu.Unlock()
		fire()
	})
}

// cancelTimer disarms the timer. Safe to call on an unarmed timer (a
// no-op) and safe to call concurrently with the callback firing: the
// callback re-checks cancel.IsClosed() before acting.
func (t *oneShotTimer) cancelTimer() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel == nil {
		return
	}
	if t.underlying != nil {
		t.underlying.Stop()
	}
	t.cancel.Close()
	t.cancel = nil
}
