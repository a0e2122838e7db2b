package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusd/internal/config"
	"focusd/internal/types"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeHistory struct {
	scores        []types.ScoreSnapshot
	interventions []types.InterventionRecord
	purgedDays    int
	summary       *types.DailySummary
}

func (f *fakeHistory) AppendEvent(context.Context, types.ActivityEvent) error             { return nil }
func (f *fakeHistory) AppendScore(context.Context, types.ScoreSnapshot) error             { return nil }
func (f *fakeHistory) AppendIntervention(context.Context, types.InterventionRecord) error { return nil }

func (f *fakeHistory) ScoresSince(_ context.Context, since time.Time) ([]types.ScoreSnapshot, error) {
	var out []types.ScoreSnapshot
	for _, s := range f.scores {
		if !s.Timestamp.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeHistory) LastScores(context.Context, int) ([]types.ScoreSnapshot, error) {
	return nil, nil
}

func (f *fakeHistory) InterventionsSince(context.Context, time.Time) ([]types.InterventionRecord, error) {
	return f.interventions, nil
}

func (f *fakeHistory) PurgeOlderThan(_ context.Context, days int) (int64, error) {
	f.purgedDays = days
	return 0, nil
}

func (f *fakeHistory) UpsertDailySummary(_ context.Context, s types.DailySummary) error {
	f.summary = &s
	return nil
}

func (f *fakeHistory) DailySummaries(context.Context, int) ([]types.DailySummary, error) {
	return nil, nil
}

type fakeTraining struct{ purgedDays int }

func (f *fakeTraining) StoreSnapshot(context.Context, types.TrainingSnapshot) error { return nil }
func (f *fakeTraining) SnapshotsSince(context.Context, time.Time) ([]types.TrainingSnapshot, error) {
	return nil, nil
}
func (f *fakeTraining) CountSince(context.Context, time.Time) (int, error) { return 0, nil }
func (f *fakeTraining) PurgeOlderThan(_ context.Context, days int) (int64, error) {
	f.purgedDays = days
	return 0, nil
}
func (f *fakeTraining) SaveModel(context.Context, string, []byte, time.Time, int) error { return nil }
func (f *fakeTraining) LoadModel(context.Context, string) ([]byte, time.Time, int, error) {
	return nil, time.Time{}, 0, types.NewAppError(types.ErrCodeNotFoundModel, "no model", nil)
}

func activeSnap(ts time.Time, score float64) types.ScoreSnapshot {
	return types.ScoreSnapshot{
		Timestamp: ts,
		Score:     score,
		Factors: map[types.FactorCategory]types.FactorResult{
			types.FactorIdle: {Detail: string(types.IdleStateActive)},
		},
	}
}

func idleSnap(ts time.Time, score float64) types.ScoreSnapshot {
	return types.ScoreSnapshot{
		Timestamp: ts,
		Score:     score,
		Factors: map[types.FactorCategory]types.FactorResult{
			types.FactorIdle: {Detail: string(types.IdleStateIdle)},
		},
	}
}

func TestMaintenancePassPurgesAndRollsUp(t *testing.T) {
	now := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)
	history := &fakeHistory{
		scores: []types.ScoreSnapshot{
			// Yesterday's snapshot stays out of today's rollup.
			activeSnap(now.Add(-20*time.Hour), 30),
			activeSnap(now.Add(-2*time.Hour), 90),
			activeSnap(now.Add(-time.Hour), 80),
			idleSnap(now.Add(-30*time.Minute), 70),
			activeSnap(now.Add(-time.Minute), 60),
		},
		interventions: []types.InterventionRecord{{ID: "a"}, {ID: "b"}},
	}
	training := &fakeTraining{}

	m := NewMaintenance(history, training,
		config.RetentionConfig{HistoryDays: 30, TrainingDays: 7},
		fakeClock{now: now},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.pass(context.Background())

	assert.Equal(t, 30, history.purgedDays)
	assert.Equal(t, 7, training.purgedDays)

	require.NotNil(t, history.summary)
	s := *history.summary
	assert.Equal(t, "2026-08-05", s.Date)
	assert.Equal(t, 60.0, s.MinScore)
	assert.Equal(t, 90.0, s.MaxScore)
	assert.Equal(t, 75.0, s.AvgScore)
	assert.Equal(t, 2, s.InterventionCount)
	// 10h elapsed, 3 of 4 snapshots active.
	assert.Equal(t, 450, s.ActiveMinutes)
}

func TestRollupSkipsEmptyDay(t *testing.T) {
	history := &fakeHistory{}
	m := NewMaintenance(history, &fakeTraining{},
		config.RetentionConfig{HistoryDays: 30, TrainingDays: 7},
		fakeClock{now: time.Date(2026, 8, 5, 1, 0, 0, 0, time.UTC)},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, m.rollupToday(context.Background()))
	assert.Nil(t, history.summary)
}

type fakeRows struct {
	rows [][]any
	i    int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.i >= len(r.rows) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.i-1]
	for i, d := range dest {
		switch v := d.(type) {
		case *time.Time:
			*v = row[i].(time.Time)
		case *float64:
			*v = row[i].(float64)
		case *[]byte:
			*v = row[i].([]byte)
		}
	}
	return nil
}

func (r *fakeRows) Err() error { return r.err }

func TestScanScores(t *testing.T) {
	ts := time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC)
	rows := &fakeRows{rows: [][]any{
		{ts, 82.5, []byte(`{"tab_switching":{"penalty":4,"raw_metric":6,"max_weight":30}}`), []byte(nil)},
		{ts.Add(time.Minute), 80.0, []byte(`{}`), []byte(`{"typing_fatigue":{"penalty":2,"raw_metric":0.1,"max_weight":15}}`)},
	}}

	out, err := scanScores(rows)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, 82.5, out[0].Score)
	assert.Equal(t, 4.0, out[0].Factors[types.FactorTabSwitching].Penalty)
	assert.Nil(t, out[0].Advisory)
	assert.Equal(t, 2.0, out[1].Advisory[types.FactorTypingFatigue].Penalty)
}

func TestScanScoresBadJSON(t *testing.T) {
	rows := &fakeRows{rows: [][]any{
		{time.Now(), 80.0, []byte(`{broken`), []byte(nil)},
	}}

	_, err := scanScores(rows)
	require.Error(t, err)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
