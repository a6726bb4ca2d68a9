package connstate

import (
	"sync"
	"testing"
	"time"
)

// fakeDeltaStream is an in-memory DeltaStream a test drives directly.
type fakeDeltaStream struct {
	last uint64
	onOp []func(uint64)
}

func (d *fakeDeltaStream) LastKnownSequenceNumber() uint64 { return d.last }
func (d *fakeDeltaStream) OnOp(f func(uint64))             { d.onOp = append(d.onOp, f) }
func (d *fakeDeltaStream) push(seq uint64) {
	for _, f := range d.onOp {
		f(seq)
	}
}

// waitFor polls until cond is true or the timeout elapses, to observe
// the monitor's background-goroutine signal without a real sleep race.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %v", timeout)
	}
}

func Test010_monitor_fires_when_target_reached(t *testing.T) {
	stream := &fakeDeltaStream{last: 100}
	monitor := NewCatchUpMonitor(stream)

	var fired atomicBool
	monitor.On(func() { fired.set(true) })

	if fired.get() {
		t.Fatalf("must not fire before the stream reaches the target")
	}
	stream.push(99)
	if fired.get() {
		t.Fatalf("must not fire below the target")
	}
	stream.push(100)
	waitFor(t, time.Second, fired.get)
}

func Test020_monitor_fires_asynchronously_when_already_caught_up(t *testing.T) {
	stream := &fakeDeltaStream{last: 0}
	monitor := NewCatchUpMonitor(stream)

	var fired atomicBool
	monitor.On(func() { fired.set(true) })

	waitFor(t, time.Second, fired.get)
}

func Test030_monitor_does_not_double_fire(t *testing.T) {
	stream := &fakeDeltaStream{last: 10}
	monitor := NewCatchUpMonitor(stream)

	var count atomicInt
	monitor.On(func() { count.add(1) })

	stream.push(10)
	stream.push(11)
	stream.push(12)

	waitFor(t, time.Second, func() bool { return count.get() >= 1 })
	time.Sleep(20 * time.Millisecond)
	if count.get() != 1 {
		t.Fatalf("expected exactly one fire, got %d", count.get())
	}
}

func Test040_monitor_late_registration_still_observes_signal(t *testing.T) {
	stream := &fakeDeltaStream{last: 5}
	monitor := NewCatchUpMonitor(stream)
	stream.push(5)

	var fired atomicBool
	// registered after the target was already reached.
	waitFor(t, time.Second, func() bool {
		monitor.On(func() { fired.set(true) })
		return true
	})
	waitFor(t, time.Second, fired.get)
}

func Test050_monitor_dispose_ignores_further_ops(t *testing.T) {
	stream := &fakeDeltaStream{last: 50}
	monitor := NewCatchUpMonitor(stream)
	monitor.Dispose()

	var fired atomicBool
	monitor.On(func() { fired.set(true) })

	stream.push(50)
	time.Sleep(20 * time.Millisecond)
	if fired.get() {
		t.Fatalf("disposed monitor must not react to further ops")
	}
}

// atomicBool/atomicInt are tiny mutex-guarded flags; this package
// otherwise has no need for sync/atomic in its tests.
type atomicBool struct {
	mu sync.Mutex
	v  bool
}

func (a *atomicBool) set(v bool) { a.mu.Lock(); a.v = v; a.mu.Unlock() }
func (a *atomicBool) get() bool  { a.mu.Lock(); defer a.mu.Unlock(); return a.v }

type atomicInt struct {
	mu sync.Mutex
	v  int
}

func (a *atomicInt) add(d int) { a.mu.Lock(); a.v += d; a.mu.Unlock() }
func (a *atomicInt) get() int  { a.mu.Lock(); defer a.mu.Unlock(); return a.v }
