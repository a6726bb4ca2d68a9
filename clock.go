package connstate

import "time"

// Timer is the minimal surface ConnectionStateCore needs from a
// scheduled one-shot callback: best-effort, idempotent cancellation.
// Calling Stop after the callback has already been queued to run does
// not guarantee the callback is skipped; see timer.go.
type Timer interface {
	Stop() bool
}

// Clock lets tests replace wall-clock timers with a fake one, so the
// Join-wait (45s) and Leave-wait (default 300s) scenarios run instantly
// and deterministically instead of sleeping for real minutes. The
// teacher's own simnet/simtime layer takes the same stance: never let
// a timing-sensitive test depend on actual elapsed wall-clock time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// systemClock is the production Clock, backed by the standard library.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the default Clock used when NewCore is called with
// CoreOptions.Clock left nil.
var SystemClock Clock = systemClock{}
