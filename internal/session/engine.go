package session

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"focusd/internal/alerts"
	"focusd/internal/config"
	"focusd/internal/forecast"
	"focusd/internal/intervention"
	"focusd/internal/scoring"
	"focusd/internal/types"
	"focusd/internal/window"
)

// Persister is the durable write-behind queue the engine hands completed
// records to. Enqueue methods must not block; flushing happens on the
// persister's own schedule.
type Persister interface {
	EnqueueEvent(e types.ActivityEvent)
	EnqueueScore(s types.ScoreSnapshot)
	EnqueueIntervention(r types.InterventionRecord)
}

type reportReq struct {
	reply chan types.ScoreReport
}

type snapshotReq struct {
	reply chan Snapshot
}

type respondReq struct {
	id     string
	action types.ResponseAction
	reply  chan respondReply
}

type respondReply struct {
	record *types.InterventionRecord
	err    error
}

type alertsReq struct {
	consumeID string
	reply     chan alertsReply
}

type alertsReply struct {
	active   []types.Alert
	consumed *types.Alert
}

// Engine is the session actor. It owns the event window, session state,
// intervention machine and alert evaluator, and serializes all access to
// them through its run loop. Everything the loop produces is handed off to
// non-blocking collaborators (persister, notifier, forecast snapshot queue),
// so a slow store or UI can never stall scoring.
type Engine struct {
	cfg        config.SessionConfig
	win        *window.Window
	state      *State
	machine    *intervention.Machine
	evaluator  *alerts.Evaluator
	persister  Persister
	notifier   types.Notifier
	forecaster types.ForecastProvider
	clock      types.Clock
	logger     *slog.Logger

	ingest     chan types.ActivityEvent
	reports    chan reportReq
	snapshots  chan snapshotReq
	responses  chan respondReq
	alertCalls chan alertsReq
	thresholds chan config.Thresholds

	dropped atomic.Int64
}

// EngineConfig bundles the Engine's dependencies.
type EngineConfig struct {
	Session    config.SessionConfig
	Thresholds config.Thresholds
	Persister  Persister
	Notifier   types.Notifier
	Forecaster types.ForecastProvider
	Clock      types.Clock
	Logger     *slog.Logger
}

// NewEngine creates a session Engine. Run must be started for ingestion and
// queries to make progress.
func NewEngine(cfg EngineConfig) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Engine{
		cfg:        cfg.Session,
		win:        window.New(cfg.Session.WindowSpan, clock),
		state:      newState(clock.Now()),
		machine:    intervention.New(cfg.Thresholds),
		evaluator:  alerts.NewEvaluator(nil),
		persister:  cfg.Persister,
		notifier:   cfg.Notifier,
		forecaster: cfg.Forecaster,
		clock:      clock,
		logger:     cfg.Logger,
		ingest:     make(chan types.ActivityEvent, cfg.Session.IngestBuffer),
		reports:    make(chan reportReq),
		snapshots:  make(chan snapshotReq),
		responses:  make(chan respondReq),
		alertCalls: make(chan alertsReq),
		thresholds: make(chan config.Thresholds, 1),
	}
}

// Run drives the engine until ctx is cancelled: events are folded into the
// window as they arrive, and every tick interval a scoring pass runs.
func (e *Engine) Run(ctx context.Context) error {
	tick := time.NewTicker(e.cfg.TickInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-e.ingest:
			e.win.Ingest(ev)
			e.state.applyEvent(ev)
			e.persister.EnqueueEvent(ev)

		case <-tick.C:
			e.tick(ctx)

		case req := <-e.reports:
			req.reply <- e.state.report(e.clock.Now())

		case req := <-e.snapshots:
			req.reply <- e.state.snapshot(e.clock.Now())

		case req := <-e.responses:
			req.reply <- e.respond(req.id, req.action)

		case req := <-e.alertCalls:
			var r alertsReply
			if req.consumeID != "" {
				r.consumed = e.evaluator.Consume(req.consumeID)
			}
			r.active = e.evaluator.Active()
			req.reply <- r

		case th := <-e.thresholds:
			e.machine.SetThresholds(th)
			e.logger.Info("intervention thresholds updated",
				"mild", th.MildScore, "urgent", th.UrgentScore)
		}
	}
}

// tick runs one scoring pass: evict aged events, score, evaluate alerts,
// feed the intervention machine, and hand results to the async
// collaborators.
func (e *Engine) tick(ctx context.Context) {
	now := e.clock.Now()
	e.win.Tick()

	snap := scoring.Score(e.win, e.state.idle, now)
	e.state.applyTick(snap, e.cfg.TickInterval)
	e.persister.EnqueueScore(snap)
	e.notifier.NotifyScore(ctx, snap)

	// Alert evaluation runs synchronously after each snapshot so an alert
	// can never fire on stale factor data.
	for _, a := range e.evaluator.Evaluate(snap, now) {
		e.notifier.NotifyAlert(ctx, a)
	}

	if r := e.machine.Observe(snap.Score, now); r != nil {
		e.state.recordIntervention(*r)
		e.persister.EnqueueIntervention(*r)
		e.notifier.NotifyIntervention(ctx, types.InterventionNotice{
			ID:        r.ID,
			Score:     r.Score,
			IsUrgent:  r.Type == types.InterventionUrgent,
			Timestamp: r.Timestamp,
		})
		e.logger.InfoContext(ctx, "intervention fired",
			"id", r.ID, "type", r.Type, "score", r.Score)
	}

	ts := forecast.BuildTrainingSnapshot(snap, e.state.start, e.state.recentScores)
	if err := e.forecaster.StoreSnapshot(ctx, ts); err != nil {
		e.logger.WarnContext(ctx, "forecast snapshot enqueue failed", "error", err)
	}
}

func (e *Engine) respond(id string, action types.ResponseAction) respondReply {
	r := e.state.respond(id, action)
	if r == nil {
		return respondReply{err: types.NewAppError(types.ErrCodeNotFoundIntervention,
			"no intervention with id "+id, nil)}
	}
	e.persister.EnqueueIntervention(*r)
	return respondReply{record: r}
}

// Ingest queues one event for the engine loop. When the buffer is full the
// event is dropped and counted; telemetry is fail-open and a stalled loop
// must not back-pressure the sensor.
func (e *Engine) Ingest(ev types.ActivityEvent) {
	select {
	case e.ingest <- ev:
	default:
		if n := e.dropped.Add(1); n%100 == 1 {
			e.logger.Warn("ingest buffer full, dropping event",
				"type", ev.Type, "dropped_total", n)
		}
	}
}

// Report returns the compact current-score payload.
func (e *Engine) Report(ctx context.Context) (types.ScoreReport, error) {
	req := reportReq{reply: make(chan types.ScoreReport, 1)}
	select {
	case e.reports <- req:
	case <-ctx.Done():
		return types.ScoreReport{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r, nil
	case <-ctx.Done():
		return types.ScoreReport{}, ctx.Err()
	}
}

// StateSnapshot returns a read-only copy of session state for the dashboard
// builder and the forecast endpoint.
func (e *Engine) StateSnapshot(ctx context.Context) (Snapshot, error) {
	req := snapshotReq{reply: make(chan Snapshot, 1)}
	select {
	case e.snapshots <- req:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case s := <-req.reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// RecordResponse attaches the user's response to a fired intervention.
func (e *Engine) RecordResponse(ctx context.Context, id string, action types.ResponseAction) (*types.InterventionRecord, error) {
	req := respondReq{id: id, action: action, reply: make(chan respondReply, 1)}
	select {
	case e.responses <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.record, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ActiveAlerts returns the unconsumed alert queue, newest first.
func (e *Engine) ActiveAlerts(ctx context.Context) ([]types.Alert, error) {
	r, err := e.alertCall(ctx, "")
	if err != nil {
		return nil, err
	}
	return r.active, nil
}

// ConsumeAlert removes an alert from the queue, returning nil when the ID is
// not queued.
func (e *Engine) ConsumeAlert(ctx context.Context, id string) (*types.Alert, error) {
	r, err := e.alertCall(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.consumed, nil
}

func (e *Engine) alertCall(ctx context.Context, consumeID string) (alertsReply, error) {
	req := alertsReq{consumeID: consumeID, reply: make(chan alertsReply, 1)}
	select {
	case e.alertCalls <- req:
	case <-ctx.Done():
		return alertsReply{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r, nil
	case <-ctx.Done():
		return alertsReply{}, ctx.Err()
	}
}

// SetThresholds hot-swaps the intervention tunables from the next loop
// iteration. Non-blocking; a pending unapplied update is replaced.
func (e *Engine) SetThresholds(th config.Thresholds) {
	select {
	case e.thresholds <- th:
	default:
		select {
		case <-e.thresholds:
		default:
		}
		e.thresholds <- th
	}
}

// DroppedEvents returns how many events the full ingest buffer rejected.
func (e *Engine) DroppedEvents() int64 { return e.dropped.Load() }
