package store

import (
	"context"
	"log/slog"
	"time"

	"focusd/internal/config"
	"focusd/internal/types"
)

// maintenanceInterval is how often the retention pass runs. Daily would
// suffice; hourly keeps the summary for the current day fresh on the
// dashboard.
const maintenanceInterval = time.Hour

// Maintenance runs the periodic housekeeping pass: purge aged history and
// training data, and roll the day's snapshots up into a daily summary.
type Maintenance struct {
	history   types.HistoryStore
	training  types.TrainingStore
	retention config.RetentionConfig
	clock     types.Clock
	logger    *slog.Logger
}

// NewMaintenance creates a Maintenance runner.
func NewMaintenance(history types.HistoryStore, training types.TrainingStore, retention config.RetentionConfig, clock types.Clock, logger *slog.Logger) *Maintenance {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Maintenance{
		history:   history,
		training:  training,
		retention: retention,
		clock:     clock,
		logger:    logger,
	}
}

// Run performs one pass immediately, then repeats on the interval until ctx
// is cancelled.
func (m *Maintenance) Run(ctx context.Context) error {
	m.pass(ctx)

	tick := time.NewTicker(maintenanceInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			m.pass(ctx)
		}
	}
}

// pass runs purge and rollup, logging failures without aborting; a skipped
// pass just means the next one has more to do.
func (m *Maintenance) pass(ctx context.Context) {
	if n, err := m.history.PurgeOlderThan(ctx, m.retention.HistoryDays); err != nil {
		m.logger.WarnContext(ctx, "history purge failed", "error", err)
	} else if n > 0 {
		m.logger.InfoContext(ctx, "history purged", "rows", n)
	}

	if n, err := m.training.PurgeOlderThan(ctx, m.retention.TrainingDays); err != nil {
		m.logger.WarnContext(ctx, "training purge failed", "error", err)
	} else if n > 0 {
		m.logger.InfoContext(ctx, "training data purged", "rows", n)
	}

	if err := m.rollupToday(ctx); err != nil {
		m.logger.WarnContext(ctx, "daily summary rollup failed", "error", err)
	}
}

// rollupToday rebuilds the summary row for the current (UTC) day from its
// snapshots and interventions.
func (m *Maintenance) rollupToday(ctx context.Context) error {
	now := m.clock.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	scores, err := m.history.ScoresSince(ctx, dayStart)
	if err != nil {
		return err
	}
	if len(scores) == 0 {
		return nil
	}

	interventions, err := m.history.InterventionsSince(ctx, dayStart)
	if err != nil {
		return err
	}

	summary := types.DailySummary{
		Date:              dayStart.Format("2006-01-02"),
		MinScore:          scores[0].Score,
		MaxScore:          scores[0].Score,
		InterventionCount: len(interventions),
	}
	var sum float64
	active := 0
	for _, s := range scores {
		sum += s.Score
		if s.Score < summary.MinScore {
			summary.MinScore = s.Score
		}
		if s.Score > summary.MaxScore {
			summary.MaxScore = s.Score
		}
		if s.Factor(types.FactorIdle).Detail == string(types.IdleStateActive) {
			active++
		}
	}
	summary.AvgScore = sum / float64(len(scores))

	// Snapshots arrive twice a minute at the default tick; approximate
	// active minutes from the active snapshot share of the day so far.
	elapsed := now.Sub(dayStart).Minutes()
	summary.ActiveMinutes = int(elapsed * float64(active) / float64(len(scores)))

	return m.history.UpsertDailySummary(ctx, summary)
}
