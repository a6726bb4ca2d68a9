package connstate

import (
	"sync/atomic"

	"github.com/glycerine/loquet"
)

// CatchUpMonitor watches a DeltaStream and signals caught_up exactly
// once, when a processed op's sequence number reaches or passes the
// target sequence number captured at construction time.
//
// The one-shot signal is a *loquet.Chan, the same primitive the
// teacher uses for its own one-shot "this message is done" signal
// (hdr.go's Message.DoneCh, closed via loquet.NewChan and observed
// through WhenClosed()). That gives us, for free, the guarantee this
// monitor needs: a listener registered after the target was already
// reached still observes the signal.
type CatchUpMonitor struct {
	target   uint64
	caughtUp *loquet.Chan[struct{}]
	fired    atomic.Bool
	disposed atomic.Bool
}

// NewCatchUpMonitor snapshots target = stream.LastKnownSequenceNumber().
// A target of 0 means the stream doesn't know of any op yet, so the
// monitor is trivially already caught up; the signal is then fired on
// its own goroutine rather than synchronously, so a caller can still
// attach a listener with On after construction returns.
func NewCatchUpMonitor(stream DeltaStream) *CatchUpMonitor {
	m := &CatchUpMonitor{
		target:   stream.LastKnownSequenceNumber(),
		caughtUp: loquet.NewChan[struct{}](&struct{}{}),
	}

	stream.OnOp(func(seq uint64) {
		if m.disposed.Load() {
			return
		}
		if seq >= m.target {
			m.fire()
		}
	})

	if m.target == 0 {
		go m.fire()
	}

	return m
}

func (m *CatchUpMonitor) fire() {
	if m.fired.CompareAndSwap(false, true) {
		m.caughtUp.Close()
	}
}

// On registers a one-shot listener for the caught_up signal. Multiple
// registrations are permitted; each fires at most once, and a
// registration made after the signal already fired still fires
// immediately.
func (m *CatchUpMonitor) On(listener func()) {
	ch := m.caughtUp.WhenClosed()
	go func() {
		<-ch
		listener()
	}()
}

// Dispose stops the monitor from reacting to further delta-stream
// ops. A caught_up signal already delivered is unaffected.
func (m *CatchUpMonitor) Dispose() {
	m.disposed.Store(true)
}
