package forecast

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"focusd/internal/config"
	"focusd/internal/types"
)

// Dataset geometry. Each training example is a SeqLen window of consecutive
// snapshots; the target is the score observed HorizonMinutes after the
// window's last snapshot. Snapshots arrive roughly once per minute, so the
// target is matched by timestamp within a tolerance rather than by index.
const (
	targetToleranceMin = 10 * time.Minute

	// syntheticDays controls the synthetic bootstrap volume: minute-spaced
	// snapshots over this many simulated days.
	syntheticDays = 3
	syntheticSeed = 7430
)

// Trainer fits and persists the sequence regressor from stored training
// snapshots, bootstrapping from synthetic data when no model exists yet.
type Trainer struct {
	store     types.TrainingStore
	regressor *RidgeRegressor
	cfg       config.ForecastConfig
	clock     types.Clock
	logger    *slog.Logger

	lastTraining time.Time
	lastSamples  int
}

// NewTrainer creates a Trainer. The regressor is shared with the Predictor;
// callers must serialize access (the forecast worker does).
func NewTrainer(store types.TrainingStore, regressor *RidgeRegressor, cfg config.ForecastConfig, clock types.Clock, logger *slog.Logger) *Trainer {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Trainer{
		store:     store,
		regressor: regressor,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
	}
}

// Restore loads a previously saved model artifact from the store. A missing
// artifact is not an error; the trainer stays untrained until Bootstrap or
// Train runs.
func (t *Trainer) Restore(ctx context.Context) error {
	artifact, trainedAt, samples, err := t.store.LoadModel(ctx, t.cfg.ModelName)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundModel {
			return nil
		}
		return fmt.Errorf("restoring model %q: %w", t.cfg.ModelName, err)
	}

	if err := t.regressor.Load(bytes.NewReader(artifact)); err != nil {
		// A corrupt or stale artifact must not poison predictions; log and
		// fall back to retraining from scratch.
		t.logger.WarnContext(ctx, "discarding unusable model artifact",
			"model", t.cfg.ModelName, "error", err)
		return nil
	}

	t.lastTraining = trainedAt
	t.lastSamples = samples
	t.logger.InfoContext(ctx, "model restored",
		"model", t.cfg.ModelName, "trained_at", trainedAt, "samples", samples)
	return nil
}

// ShouldRetrain reports whether a retraining pass is due: never trained, the
// last training is older than the configured staleness window, or enough new
// snapshots have accumulated since.
func (t *Trainer) ShouldRetrain(ctx context.Context) bool {
	if !t.regressor.Trained() {
		return true
	}
	now := t.clock.Now()
	if now.Sub(t.lastTraining) > time.Duration(t.cfg.RetrainAfterDays)*24*time.Hour {
		return true
	}
	n, err := t.store.CountSince(ctx, t.lastTraining)
	if err != nil {
		t.logger.WarnContext(ctx, "counting new training snapshots failed", "error", err)
		return false
	}
	return n > t.cfg.RetrainAfterNew
}

// Train fits the regressor on stored snapshots from the retention window and
// persists the resulting artifact. With fewer than the configured minimum
// samples it returns Success=false without error; scarce data is an expected
// state, not a failure.
func (t *Trainer) Train(ctx context.Context) (types.TrainingResult, error) {
	since := t.clock.Now().AddDate(0, 0, -t.cfg.RetrainAfterDays)
	snaps, err := t.store.SnapshotsSince(ctx, since)
	if err != nil {
		return types.TrainingResult{}, fmt.Errorf("loading training snapshots: %w", err)
	}
	if len(snaps) < t.cfg.MinTrainSamples {
		t.logger.InfoContext(ctx, "skipping training, insufficient snapshots",
			"have", len(snaps), "need", t.cfg.MinTrainSamples)
		return types.TrainingResult{Success: false, Samples: len(snaps)}, nil
	}

	windows, targets := buildDataset(snaps)
	if len(windows) == 0 {
		t.logger.InfoContext(ctx, "skipping training, no complete windows", "snapshots", len(snaps))
		return types.TrainingResult{Success: false, Samples: len(snaps)}, nil
	}

	return t.fitAndSave(ctx, windows, targets, len(snaps))
}

// Bootstrap fits the regressor on deterministic synthetic data so forecasts
// are model-based from first launch, before any real history accumulates.
func (t *Trainer) Bootstrap(ctx context.Context) (types.TrainingResult, error) {
	snaps := syntheticSnapshots(t.clock.Now())
	windows, targets := buildDataset(snaps)
	t.logger.InfoContext(ctx, "bootstrapping model from synthetic data",
		"snapshots", len(snaps), "windows", len(windows))
	return t.fitAndSave(ctx, windows, targets, len(snaps))
}

// LastTraining returns when the current model was fitted and on how many
// snapshots. Zero time means never.
func (t *Trainer) LastTraining() (time.Time, int) {
	return t.lastTraining, t.lastSamples
}

func (t *Trainer) fitAndSave(ctx context.Context, windows [][][]float64, targets []float64, samples int) (types.TrainingResult, error) {
	start := t.clock.Now()
	loss, err := t.regressor.Fit(windows, targets)
	if err != nil {
		return types.TrainingResult{}, fmt.Errorf("fitting regressor: %w", err)
	}

	artifact, err := t.regressor.Marshal()
	if err != nil {
		return types.TrainingResult{}, fmt.Errorf("serializing model: %w", err)
	}
	trainedAt := t.clock.Now()
	if err := t.store.SaveModel(ctx, t.cfg.ModelName, artifact, trainedAt, samples); err != nil {
		// The in-memory model is still usable; persistence failure only costs
		// retraining on next start.
		t.logger.ErrorContext(ctx, "persisting model artifact failed",
			"model", t.cfg.ModelName, "error", err)
	}

	t.lastTraining = trainedAt
	t.lastSamples = samples
	t.logger.InfoContext(ctx, "model trained",
		"model", t.cfg.ModelName, "windows", len(windows), "loss", loss,
		"duration_ms", trainedAt.Sub(start).Milliseconds())

	return types.TrainingResult{
		Success:    true,
		Samples:    samples,
		Loss:       loss,
		DurationMs: trainedAt.Sub(start).Milliseconds(),
		TrainedAt:  trainedAt,
	}, nil
}

// buildDataset slides a SeqLen window over the time-ordered snapshots and
// pairs each window with the score observed about HorizonMinutes after its
// last snapshot, normalized to [0, 1]. Windows whose target lands outside
// the tolerance (session gaps, restarts) are skipped.
func buildDataset(snaps []types.TrainingSnapshot) (windows [][][]float64, targets []float64) {
	horizon := time.Duration(HorizonMinutes) * time.Minute

	maxSpan := time.Duration(SeqLen-1)*time.Minute + targetToleranceMin

	for i := 0; i+SeqLen < len(snaps); i++ {
		end := snaps[i+SeqLen-1]
		// A window stretched across a session gap is not a real sequence.
		if end.Timestamp.Sub(snaps[i].Timestamp) > maxSpan {
			continue
		}
		wantAt := end.Timestamp.Add(horizon)

		// Find the first snapshot at or after the horizon point.
		ti := i + SeqLen
		for ti < len(snaps) && snaps[ti].Timestamp.Before(wantAt) {
			ti++
		}
		if ti >= len(snaps) {
			break
		}
		if snaps[ti].Timestamp.Sub(wantAt) > targetToleranceMin {
			continue
		}

		w := make([][]float64, 0, SeqLen)
		for _, s := range snaps[i : i+SeqLen] {
			w = append(w, s.Features())
		}
		windows = append(windows, w)
		targets = append(targets, snaps[ti].ExhaustionScore/100)
	}
	return windows, targets
}

// syntheticSnapshots generates minute-spaced snapshots over syntheticDays
// simulated days from a seeded generator. The generative model mirrors the
// scoring engine's structure: attention declines with session length and at
// late hours, and the factor features correlate with the decline.
func syntheticSnapshots(now time.Time) []types.TrainingSnapshot {
	rng := rand.New(rand.NewSource(syntheticSeed))
	start := now.AddDate(0, 0, -syntheticDays).Truncate(time.Minute)

	total := syntheticDays * 24 * 60
	snaps := make([]types.TrainingSnapshot, 0, total)
	sessionMinutes := 0.0

	for m := 0; m < total; m++ {
		ts := start.Add(time.Duration(m) * time.Minute)
		hour := ts.Hour()

		// Sessions run 9:00-13:00 and 14:00-20:00; outside them the session
		// counter resets and no snapshot is emitted.
		inSession := (hour >= 9 && hour < 13) || (hour >= 14 && hour < 20)
		if !inSession {
			sessionMinutes = 0
			continue
		}
		sessionMinutes++

		base := 100.0 - timeOfDayPenalty(hour) - math.Min(50, sessionMinutes*0.5)
		score := clampScore(base + rng.NormFloat64()*5)

		// Sub-signals scale with how degraded the score is, plus noise.
		drain := (100 - score) / 100
		noisy := func(scale float64) float64 {
			v := drain*scale + rng.NormFloat64()*0.08
			if v < 0 {
				return 0
			}
			if v > 1 {
				return 1
			}
			return v
		}

		snaps = append(snaps, types.TrainingSnapshot{
			Timestamp: ts,
			BehavioralFeatures: []float64{
				score / 100,
				noisy(0.8), // tab switching
				noisy(0.3), // idle
				lateNightIndicator(hour),
				noisy(0.5), // mouse
				noisy(0.4), // scroll
				noisy(0.4), // typing
				noisy(0.3), // click
			},
			PhysiologicalFeatures: []float64{
				float64(hour) / 24,
				math.Min(1, sessionMinutes/maxSessionMinutes),
				drain * 0.5,
			},
			ExhaustionScore: score,
		})
	}
	return snaps
}

// timeOfDayPenalty is the synthetic generator's circadian component.
func timeOfDayPenalty(hour int) float64 {
	switch {
	case hour >= 23 || hour < 5:
		return 25
	case hour >= 21:
		return 15
	case hour >= 14 && hour < 16:
		// Post-lunch dip.
		return 8
	default:
		return 0
	}
}

func lateNightIndicator(hour int) float64 {
	if hour >= 23 || hour < 5 {
		return 1
	}
	if hour >= 22 {
		return 0.5
	}
	return 0
}
