package session

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"focusd/internal/types"
)

// Dashboard lookback spans.
const (
	hourlyLookback  = 12 * time.Hour
	summaryDays     = 7
	trendComparison = 30 * time.Minute
	trendThreshold  = 5.0
)

// Dashboard assembles the aggregate dashboard payload from session state,
// the history store and the forecaster. Store reads run on the caller's
// goroutine, never inside the engine loop; a failed read degrades that
// section to empty rather than failing the whole payload.
type Dashboard struct {
	engine     *Engine
	store      types.HistoryStore
	forecaster types.ForecastProvider
	clock      types.Clock
	logger     *slog.Logger
}

// NewDashboard creates a Dashboard builder.
func NewDashboard(engine *Engine, store types.HistoryStore, forecaster types.ForecastProvider, clock types.Clock, logger *slog.Logger) *Dashboard {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Dashboard{
		engine:     engine,
		store:      store,
		forecaster: forecaster,
		clock:      clock,
		logger:     logger,
	}
}

// Build assembles the full dashboard payload.
func (d *Dashboard) Build(ctx context.Context) (types.DashboardData, error) {
	snap, err := d.engine.StateSnapshot(ctx)
	if err != nil {
		return types.DashboardData{}, err
	}
	now := d.clock.Now()

	scores, err := d.store.ScoresSince(ctx, now.Add(-hourlyLookback))
	if err != nil {
		d.logger.WarnContext(ctx, "loading score history failed", "error", err)
		scores = snap.RecentScores
	}

	summaries, err := d.store.DailySummaries(ctx, summaryDays)
	if err != nil {
		d.logger.WarnContext(ctx, "loading daily summaries failed", "error", err)
	}

	var insights []types.Insight
	if in, err := d.forecaster.GenerateInsight(ctx, snap.RecentScores); err == nil {
		insights = append(insights, in)
	} else {
		d.logger.WarnContext(ctx, "insight generation failed", "error", err)
	}

	return types.DashboardData{
		CurrentScore:    snap.Latest.Score,
		Factors:         snap.Latest.Factors,
		SessionDuration: snap.SessionDuration,
		ActiveTime:      snap.ActiveTime,
		IdleTime:        snap.IdleTime,
		TabSwitches:     snap.TabSwitches,
		HourlyScores:    hourlyScores(scores),
		Interventions:   snap.Interventions,
		DailySummaries:  summaries,
		Trend:           sessionTrend(snap.RecentScores),
		DistractionPeak: distractionPeak(scores),
		Insights:        insights,
		IdleState:       snap.IdleState,
	}, nil
}

// hourlyScores buckets snapshots into hour-aligned averages, ascending.
func hourlyScores(scores []types.ScoreSnapshot) []types.HourlyScore {
	buckets := map[time.Time]*types.HourlyScore{}
	for _, s := range scores {
		h := s.Timestamp.Truncate(time.Hour)
		b, ok := buckets[h]
		if !ok {
			b = &types.HourlyScore{Hour: h}
			buckets[h] = b
		}
		b.AvgScore += s.Score
		b.Samples++
	}

	out := make([]types.HourlyScore, 0, len(buckets))
	for _, b := range buckets {
		b.AvgScore /= float64(b.Samples)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour.Before(out[j].Hour) })
	return out
}

// sessionTrend compares the mean of the last half hour of snapshots against
// the half hour before it.
func sessionTrend(recent []types.ScoreSnapshot) types.Trend {
	if len(recent) < 4 {
		return types.TrendStable
	}

	cut := recent[len(recent)-1].Timestamp.Add(-trendComparison)
	var curSum, prevSum float64
	var curN, prevN int
	for _, s := range recent {
		if s.Timestamp.After(cut) {
			curSum += s.Score
			curN++
		} else {
			prevSum += s.Score
			prevN++
		}
	}
	if curN == 0 || prevN == 0 {
		return types.TrendStable
	}

	diff := curSum/float64(curN) - prevSum/float64(prevN)
	switch {
	case diff > trendThreshold:
		return types.TrendImproving
	case diff < -3*trendThreshold:
		return types.TrendCritical
	case diff < -trendThreshold:
		return types.TrendDeclining
	default:
		return types.TrendStable
	}
}

// distractionPeak names the hour with the highest mean penalty, empty when
// there is no meaningful signal.
func distractionPeak(scores []types.ScoreSnapshot) string {
	type agg struct {
		sum float64
		n   int
	}
	byHour := map[int]*agg{}
	for _, s := range scores {
		h := s.Timestamp.Hour()
		a, ok := byHour[h]
		if !ok {
			a = &agg{}
			byHour[h] = a
		}
		a.sum += s.PenaltySum()
		a.n++
	}

	peakHour, peakMean := -1, 0.0
	for h, a := range byHour {
		mean := a.sum / float64(a.n)
		if mean > peakMean {
			peakHour, peakMean = h, mean
		}
	}
	if peakHour < 0 || peakMean < 10 {
		return ""
	}
	return time.Date(0, 1, 1, peakHour, 0, 0, 0, time.UTC).Format("15:00")
}
