package forecast

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"focusd/internal/config"
	"focusd/internal/types"
)

// retrainCheckInterval is how often the worker evaluates the retrain policy.
const retrainCheckInterval = time.Hour

// snapshotBuffer bounds the async snapshot queue. When full, snapshots are
// dropped rather than blocking the session engine.
const snapshotBuffer = 64

type predictReq struct {
	history []types.ScoreSnapshot
	reply   chan types.PredictionResult
}

type insightReq struct {
	history []types.ScoreSnapshot
	reply   chan types.Insight
}

type trainReq struct {
	reply chan trainReply
}

type trainReply struct {
	result types.TrainingResult
	err    error
}

type statusReq struct {
	reply chan types.ForecastStatus
}

// Worker owns the forecasting model and serializes all access to it through
// its run loop: predictions, insight generation, training snapshot writes,
// and (re)training. It implements types.ForecastProvider; requests arrive on
// channels so model work never runs on the ingestion path.
type Worker struct {
	predictor *Predictor
	trainer   *Trainer
	store     types.TrainingStore
	cfg       config.ForecastConfig
	clock     types.Clock
	logger    *slog.Logger

	predicts  chan predictReq
	insights  chan insightReq
	trains    chan trainReq
	statuses  chan statusReq
	snapshots chan types.TrainingSnapshot

	training atomic.Bool
	dropped  atomic.Int64
}

// WorkerConfig bundles the Worker's dependencies.
type WorkerConfig struct {
	Predictor *Predictor
	Trainer   *Trainer
	Store     types.TrainingStore
	Forecast  config.ForecastConfig
	Clock     types.Clock
	Logger    *slog.Logger
}

// NewWorker creates a forecast Worker. Run must be started for the provider
// methods to make progress.
func NewWorker(cfg WorkerConfig) *Worker {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Worker{
		predictor: cfg.Predictor,
		trainer:   cfg.Trainer,
		store:     cfg.Store,
		cfg:       cfg.Forecast,
		clock:     clock,
		logger:    cfg.Logger,
		predicts:  make(chan predictReq),
		insights:  make(chan insightReq),
		trains:    make(chan trainReq),
		statuses:  make(chan statusReq),
		snapshots: make(chan types.TrainingSnapshot, snapshotBuffer),
	}
}

// Run restores any persisted model, bootstraps one if none exists, then
// serves requests until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.trainer.Restore(ctx); err != nil {
		w.logger.ErrorContext(ctx, "model restore failed", "error", err)
	}
	if !w.trainer.regressor.Trained() {
		if _, err := w.trainer.Bootstrap(ctx); err != nil {
			// Bootstrap failure leaves the linear fallback in charge.
			w.logger.ErrorContext(ctx, "synthetic bootstrap failed", "error", err)
		}
	}

	retrain := time.NewTicker(retrainCheckInterval)
	defer retrain.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case req := <-w.predicts:
			req.reply <- w.predictor.Predict(req.history)

		case req := <-w.insights:
			req.reply <- w.predictor.GenerateInsight(req.history)

		case s := <-w.snapshots:
			if err := w.store.StoreSnapshot(ctx, s); err != nil {
				w.logger.WarnContext(ctx, "storing training snapshot failed", "error", err)
			}

		case req := <-w.trains:
			w.training.Store(true)
			result, err := w.trainer.Train(ctx)
			w.training.Store(false)
			req.reply <- trainReply{result: result, err: err}

		case req := <-w.statuses:
			req.reply <- w.status(ctx)

		case <-retrain.C:
			if !w.trainer.ShouldRetrain(ctx) {
				continue
			}
			w.training.Store(true)
			if _, err := w.trainer.Train(ctx); err != nil {
				w.logger.ErrorContext(ctx, "scheduled retraining failed", "error", err)
			}
			w.training.Store(false)
		}
	}
}

// Predict forecasts from the given history. Blocks until the worker loop
// services the request or ctx is cancelled.
func (w *Worker) Predict(ctx context.Context, history []types.ScoreSnapshot) (types.PredictionResult, error) {
	req := predictReq{history: history, reply: make(chan types.PredictionResult, 1)}
	select {
	case w.predicts <- req:
	case <-ctx.Done():
		return types.PredictionResult{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r, nil
	case <-ctx.Done():
		return types.PredictionResult{}, ctx.Err()
	}
}

// GenerateInsight derives one dashboard insight from the history.
func (w *Worker) GenerateInsight(ctx context.Context, history []types.ScoreSnapshot) (types.Insight, error) {
	req := insightReq{history: history, reply: make(chan types.Insight, 1)}
	select {
	case w.insights <- req:
	case <-ctx.Done():
		return types.Insight{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r, nil
	case <-ctx.Done():
		return types.Insight{}, ctx.Err()
	}
}

// StoreSnapshot enqueues a training snapshot without blocking. When the
// queue is full the snapshot is dropped and counted; losing an occasional
// training sample is preferable to stalling the session engine.
func (w *Worker) StoreSnapshot(_ context.Context, s types.TrainingSnapshot) error {
	select {
	case w.snapshots <- s:
	default:
		if n := w.dropped.Add(1); n%100 == 1 {
			w.logger.Warn("training snapshot queue full, dropping", "dropped_total", n)
		}
	}
	return nil
}

// TrainModel runs a training pass synchronously. A concurrent training
// request is rejected with conflict_training_in_progress.
func (w *Worker) TrainModel(ctx context.Context) (types.TrainingResult, error) {
	if w.training.Load() {
		return types.TrainingResult{}, types.NewAppError(types.ErrCodeConflictTraining,
			"a training run is already in progress", nil)
	}
	req := trainReq{reply: make(chan trainReply, 1)}
	select {
	case w.trains <- req:
	case <-ctx.Done():
		return types.TrainingResult{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.result, r.err
	case <-ctx.Done():
		return types.TrainingResult{}, ctx.Err()
	}
}

// Status reports model readiness and snapshot volume.
func (w *Worker) Status(ctx context.Context) (types.ForecastStatus, error) {
	req := statusReq{reply: make(chan types.ForecastStatus, 1)}
	select {
	case w.statuses <- req:
	case <-ctx.Done():
		return types.ForecastStatus{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r, nil
	case <-ctx.Done():
		return types.ForecastStatus{}, ctx.Err()
	}
}

func (w *Worker) status(ctx context.Context) types.ForecastStatus {
	since := w.clock.Now().AddDate(0, 0, -w.cfg.RetrainAfterDays)
	count, err := w.store.CountSince(ctx, since)
	if err != nil {
		w.logger.WarnContext(ctx, "counting training snapshots failed", "error", err)
	}

	st := types.ForecastStatus{
		Ready:         w.trainer.regressor.Trained(),
		SnapshotCount: count,
	}
	if trainedAt, _ := w.trainer.LastTraining(); !trainedAt.IsZero() {
		st.LastTraining = &trainedAt
	}
	return st
}
