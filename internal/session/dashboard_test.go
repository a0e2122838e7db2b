package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusd/internal/types"
)

func snapAt(ts time.Time, score float64) types.ScoreSnapshot {
	return types.ScoreSnapshot{Timestamp: ts, Score: score}
}

func TestHourlyScoresBucketsAndAverages(t *testing.T) {
	base := time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC)
	scores := []types.ScoreSnapshot{
		snapAt(base.Add(5*time.Minute), 80),
		snapAt(base.Add(25*time.Minute), 60),
		snapAt(base.Add(70*time.Minute), 90),
	}

	out := hourlyScores(scores)
	require.Len(t, out, 2)
	assert.Equal(t, base, out[0].Hour)
	assert.Equal(t, 70.0, out[0].AvgScore)
	assert.Equal(t, 2, out[0].Samples)
	assert.Equal(t, base.Add(time.Hour), out[1].Hour)
	assert.Equal(t, 90.0, out[1].AvgScore)
}

func TestHourlyScoresEmpty(t *testing.T) {
	assert.Empty(t, hourlyScores(nil))
}

func TestSessionTrend(t *testing.T) {
	base := time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC)
	build := func(prev, cur float64) []types.ScoreSnapshot {
		var out []types.ScoreSnapshot
		// Half an hour at the prior level, then half an hour at the new one.
		for i := 0; i < 30; i++ {
			out = append(out, snapAt(base.Add(time.Duration(i)*time.Minute), prev))
		}
		for i := 30; i < 60; i++ {
			out = append(out, snapAt(base.Add(time.Duration(i)*time.Minute), cur))
		}
		return out
	}

	tests := []struct {
		name      string
		prev, cur float64
		want      types.Trend
	}{
		{"improving", 60, 80, types.TrendImproving},
		{"stable", 70, 72, types.TrendStable},
		{"declining", 80, 70, types.TrendDeclining},
		{"critical", 80, 55, types.TrendCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sessionTrend(build(tt.prev, tt.cur)))
		})
	}
}

func TestSessionTrendTooFewSamples(t *testing.T) {
	base := time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, types.TrendStable, sessionTrend([]types.ScoreSnapshot{
		snapAt(base, 90), snapAt(base.Add(time.Minute), 20),
	}))
}

func TestDistractionPeak(t *testing.T) {
	base := time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC)
	withPenalty := func(ts time.Time, penalty float64) types.ScoreSnapshot {
		return types.ScoreSnapshot{
			Timestamp: ts,
			Factors: map[types.FactorCategory]types.FactorResult{
				types.FactorTabSwitching: {Penalty: penalty, MaxWeight: 30},
			},
		}
	}

	scores := []types.ScoreSnapshot{
		withPenalty(base, 5),
		withPenalty(base.Add(10*time.Minute), 5),
		withPenalty(base.Add(5*time.Hour), 25),
		withPenalty(base.Add(5*time.Hour+10*time.Minute), 20),
	}
	assert.Equal(t, "14:00", distractionPeak(scores))
}

func TestDistractionPeakRequiresSignal(t *testing.T) {
	base := time.Date(2026, 8, 5, 9, 0, 0, 0, time.UTC)
	quiet := []types.ScoreSnapshot{
		{Timestamp: base, Factors: map[types.FactorCategory]types.FactorResult{
			types.FactorTabSwitching: {Penalty: 3},
		}},
	}
	assert.Empty(t, distractionPeak(quiet))
	assert.Empty(t, distractionPeak(nil))
}
