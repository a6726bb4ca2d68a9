package main

import (
	"log"
	"time"

	tdigest "github.com/caio/go-tdigest"
	json "github.com/goccy/go-json"

	"github.com/relaydoc/connstate"
)

// logTelemetry renders every diagnostic with the standard log package,
// the way cmd/cli/client.go does (log.SetFlags(log.LstdFlags |
// log.Lshortfile)), and serializes details with goccy/go-json since
// the core hands every diagnostic a details_json-shaped payload.
type logTelemetry struct {
	waitSpans *tdigest.TDigest
	joinLag   *tdigest.TDigest
}

func newLogTelemetry() *logTelemetry {
	waitSpans, err := tdigest.New(tdigest.Compression(100))
	panicOn(err)
	joinLag, err := tdigest.New(tdigest.Compression(100))
	panicOn(err)
	return &logTelemetry{waitSpans: waitSpans, joinLag: joinLag}
}

func (t *logTelemetry) LogConnectionIssue(event string, details map[string]any) {
	by, err := json.Marshal(details)
	panicOn(err)
	log.Printf("connstate: %s %s", event, by)
}

func (t *logTelemetry) SendTelemetryEvent(event, category string, details map[string]any) {
	by, err := json.Marshal(details)
	panicOn(err)
	log.Printf("connstate: %s [%s] %s", event, category, by)
}

type logSpan struct {
	name    string
	started time.Time
	record  *tdigest.TDigest
}

func (t *logTelemetry) StartSpan(name string) connstate.Span {
	return &logSpan{name: name, started: time.Now(), record: t.waitSpans}
}

func (s *logSpan) End(details map[string]any) {
	elapsed := time.Since(s.started)
	s.record.Add(float64(elapsed.Milliseconds()))
	by, err := json.Marshal(details)
	panicOn(err)
	log.Printf("connstate: span %s ended after %v %s", s.name, elapsed, by)
}

// summary prints p50/p99/p999 WaitBeforeClientLeave span durations,
// the same quantiles cmd/cli/client.go reports for round-trip latency
// (td.Quantile(0.99)).
func (t *logTelemetry) summary() {
	if t.waitSpans.Count() == 0 {
		log.Printf("connstate: no WaitBeforeClientLeave spans recorded")
		return
	}
	log.Printf("connstate: WaitBeforeClientLeave ms p50=%.1f p99=%.1f p999=%.1f",
		t.waitSpans.Quantile(0.5), t.waitSpans.Quantile(0.99), t.waitSpans.Quantile(0.999))
}

func panicOn(err error) {
	if err != nil {
		panic(err)
	}
}
