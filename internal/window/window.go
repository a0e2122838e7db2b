// Package window implements the trailing time-bounded event buffer that feeds
// the scoring engine. The window retains the last Span (default 10 minutes)
// of typed activity events in arrival order and evicts everything older on
// each ingestion and tick.
//
// The window is single-owner state: it is mutated only by the session
// engine's serialized loop and is deliberately not safe for concurrent use.
package window

import (
	"iter"
	"time"

	"focusd/internal/types"
)

// DefaultSpan is the trailing retention span of the event window.
const DefaultSpan = 10 * time.Minute

// Window is a trailing time-bounded ordered buffer of activity events.
// Events are ordered by arrival; ties on timestamp keep insertion order.
// No deduplication is performed — duplicate events are independent signals.
type Window struct {
	span   time.Duration
	clock  types.Clock
	events []types.ActivityEvent

	dropped int // unknown/malformed events dropped since construction
}

// New creates a Window with the given span. A non-positive span falls back
// to DefaultSpan. A nil clock falls back to the real clock.
func New(span time.Duration, clock types.Clock) *Window {
	if span <= 0 {
		span = DefaultSpan
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Window{span: span, clock: clock}
}

// Ingest appends the event in arrival order and evicts all entries older
// than now minus the window span. Unknown event types are dropped silently:
// telemetry is fail-open and never surfaces an error to the sensor.
//
// Events arriving with a zero timestamp are stamped with the current time so
// eviction ordering stays well defined.
func (w *Window) Ingest(e types.ActivityEvent) {
	if _, ok := types.KnownEventTypes[e.Type]; !ok {
		w.dropped++
		return
	}

	now := w.clock.Now()
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	w.events = append(w.events, e)
	w.evict(now)
}

// Tick evicts aged events without ingesting. The session engine calls this
// on each scoring tick so idle periods still shrink the window.
func (w *Window) Tick() {
	w.evict(w.clock.Now())
}

// evict removes every event with timestamp < now - span. Arrival order is
// close to timestamp order, but a late-arriving backdated event can sit
// behind fresher ones, so eviction compacts the whole buffer rather than
// trimming only the front.
func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.span)
	kept := w.events[:0]
	for _, e := range w.events {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	// Zero the tail so evicted events do not pin payload memory.
	for i := len(kept); i < len(w.events); i++ {
		w.events[i] = types.ActivityEvent{}
	}
	w.events = kept
}

// Query returns a lazy, restartable sequence over retained events with
// timestamp >= since that satisfy pred. A nil pred matches every event.
// The sequence reflects the buffer contents at iteration time; restarting
// the sequence after further ingestion sees the updated buffer.
func (w *Window) Query(pred func(types.ActivityEvent) bool, since time.Time) iter.Seq[types.ActivityEvent] {
	return func(yield func(types.ActivityEvent) bool) {
		for _, e := range w.events {
			if e.Timestamp.Before(since) {
				continue
			}
			if pred != nil && !pred(e) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// CountType counts retained events of the given type with timestamp >= since.
func (w *Window) CountType(t types.EventType, since time.Time) int {
	n := 0
	for range w.Query(func(e types.ActivityEvent) bool { return e.Type == t }, since) {
		n++
	}
	return n
}

// Len returns the number of retained events.
func (w *Window) Len() int { return len(w.events) }

// Dropped returns the number of unknown-type events silently dropped.
func (w *Window) Dropped() int { return w.dropped }
