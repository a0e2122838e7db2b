// Package batch implements the write-behind persistence queue between the
// session engine and the history store. Records accumulate in memory and are
// flushed on a fixed interval; a failed flush keeps the batch for the next
// attempt, giving at-least-once, order-preserving delivery.
package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"focusd/internal/types"
)

// maxPending bounds the in-memory queue per record kind. When the store is
// down long enough to hit the cap, the oldest records are dropped; losing
// history beats unbounded growth inside a resident daemon.
const maxPending = 4096

// Writer buffers events, snapshots and interventions and flushes them to the
// history store on its own schedule. Enqueue methods never block and are
// safe to call from any goroutine.
type Writer struct {
	store    types.HistoryStore
	interval time.Duration
	logger   *slog.Logger

	mu            sync.Mutex
	events        []types.ActivityEvent
	scores        []types.ScoreSnapshot
	interventions []types.InterventionRecord
	droppedTotal  int64
}

// NewWriter creates a Writer flushing every interval.
func NewWriter(store types.HistoryStore, interval time.Duration, logger *slog.Logger) *Writer {
	return &Writer{store: store, interval: interval, logger: logger}
}

// EnqueueEvent queues an activity event for the next flush.
func (w *Writer) EnqueueEvent(e types.ActivityEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = appendBounded(w.events, e, &w.droppedTotal)
}

// EnqueueScore queues a score snapshot for the next flush.
func (w *Writer) EnqueueScore(s types.ScoreSnapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scores = appendBounded(w.scores, s, &w.droppedTotal)
}

// EnqueueIntervention queues an intervention record for the next flush.
func (w *Writer) EnqueueIntervention(r types.InterventionRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.interventions = appendBounded(w.interventions, r, &w.droppedTotal)
}

// Run flushes on the interval until ctx is cancelled, then performs one
// final flush with a short grace timeout so shutdown does not silently drop
// the tail.
func (w *Writer) Run(ctx context.Context) error {
	tick := time.NewTicker(w.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.Flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-tick.C:
			w.Flush(ctx)
		}
	}
}

// Flush writes all pending records. Each kind flushes independently; records
// that fail are prepended back in order and retried on the next interval.
// There is no backoff: the store is local and the flush interval already
// paces retries.
func (w *Writer) Flush(ctx context.Context) {
	w.mu.Lock()
	events := w.events
	scores := w.scores
	interventions := w.interventions
	w.events, w.scores, w.interventions = nil, nil, nil
	w.mu.Unlock()

	failedEvents := flushSlice(ctx, events, w.store.AppendEvent)
	failedScores := flushSlice(ctx, scores, w.store.AppendScore)
	failedIvs := flushSlice(ctx, interventions, w.store.AppendIntervention)

	if len(failedEvents)+len(failedScores)+len(failedIvs) > 0 {
		w.logger.WarnContext(ctx, "flush incomplete, retrying next interval",
			"events", len(failedEvents), "scores", len(failedScores),
			"interventions", len(failedIvs))

		w.mu.Lock()
		w.events = append(failedEvents, w.events...)
		w.scores = append(failedScores, w.scores...)
		w.interventions = append(failedIvs, w.interventions...)
		w.mu.Unlock()
	}
}

// Pending returns the queued record count across all kinds.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events) + len(w.scores) + len(w.interventions)
}

// flushSlice writes records in order, stopping at the first failure and
// returning the unwritten remainder so ordering is preserved across retries.
func flushSlice[T any](ctx context.Context, items []T, write func(context.Context, T) error) []T {
	for i, item := range items {
		if err := write(ctx, item); err != nil {
			return items[i:]
		}
	}
	return nil
}

// appendBounded appends v, evicting the oldest entry once the queue is full.
func appendBounded[T any](q []T, v T, dropped *int64) []T {
	if len(q) >= maxPending {
		copy(q, q[1:])
		q[len(q)-1] = v
		*dropped++
		return q
	}
	return append(q, v)
}
