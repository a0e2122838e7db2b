package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusd/internal/types"
)

var t0 = time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC)

// snapshot builds a quiet snapshot with the given score and full factor maps
// so rules have something to inspect.
func snapshot(score float64) types.ScoreSnapshot {
	factors := map[types.FactorCategory]types.FactorResult{}
	for _, c := range []types.FactorCategory{
		types.FactorTabSwitching, types.FactorIdle, types.FactorLateNight,
		types.FactorErraticMouse, types.FactorRapidScroll, types.FactorOffHours,
	} {
		factors[c] = types.FactorResult{}
	}
	return types.ScoreSnapshot{
		Timestamp: t0,
		Score:     score,
		Factors:   factors,
		Advisory:  map[types.FactorCategory]types.FactorResult{},
	}
}

func withFactor(s types.ScoreSnapshot, c types.FactorCategory, f types.FactorResult) types.ScoreSnapshot {
	s.Factors[c] = f
	return s
}

func TestScoreDangerAndWarningAreExclusive(t *testing.T) {
	e := NewEvaluator(nil)

	fired := e.Evaluate(snapshot(30), t0)
	require.Len(t, fired, 1)
	assert.Equal(t, types.TriggerScoreDanger, fired[0].TriggerKey)
	assert.Equal(t, types.WellnessWalk, fired[0].WellnessType)

	e = NewEvaluator(nil)
	fired = e.Evaluate(snapshot(45), t0)
	require.Len(t, fired, 1)
	assert.Equal(t, types.TriggerScoreWarning, fired[0].TriggerKey)

	e = NewEvaluator(nil)
	assert.Empty(t, e.Evaluate(snapshot(80), t0))
}

func TestCooldownSuppressesRefire(t *testing.T) {
	e := NewEvaluator(nil)

	require.Len(t, e.Evaluate(snapshot(30), t0), 1)
	e.Consume(e.Active()[0].ID)

	// Within the 5 minute cooldown nothing fires even though the condition
	// still holds and the queue is empty.
	assert.Empty(t, e.Evaluate(snapshot(30), t0.Add(4*time.Minute)))

	fired := e.Evaluate(snapshot(30), t0.Add(5*time.Minute+time.Second))
	assert.Len(t, fired, 1)
}

func TestQueuedKeySuppressed(t *testing.T) {
	e := NewEvaluator(nil)

	require.Len(t, e.Evaluate(snapshot(30), t0), 1)

	// Past the cooldown but the alert is still queued: suppressed.
	assert.Empty(t, e.Evaluate(snapshot(30), t0.Add(10*time.Minute)))

	// Consuming it clears the way.
	e.Consume(e.Active()[0].ID)
	assert.Len(t, e.Evaluate(snapshot(30), t0.Add(20*time.Minute)), 1)
}

func TestQueueCapsAtThreeNewestFirst(t *testing.T) {
	e := NewEvaluator(nil)

	s := snapshot(30)
	s = withFactor(s, types.FactorTabSwitching, types.FactorResult{Penalty: 20, RawMetric: 10, MaxWeight: 30})
	s = withFactor(s, types.FactorErraticMouse, types.FactorResult{Penalty: 9, MaxWeight: 15})
	s = withFactor(s, types.FactorRapidScroll, types.FactorResult{Penalty: 6, MaxWeight: 10})
	s = withFactor(s, types.FactorLateNight, types.FactorResult{Penalty: 15, MaxWeight: 15})

	fired := e.Evaluate(s, t0)
	require.Greater(t, len(fired), 3)

	active := e.Active()
	require.Len(t, active, MaxActive)

	// The queue holds the newest three in reverse firing order.
	assert.Equal(t, fired[len(fired)-1].TriggerKey, active[0].TriggerKey)
}

func TestFactorRules(t *testing.T) {
	cases := []struct {
		name string
		prep func(types.ScoreSnapshot) types.ScoreSnapshot
		key  types.TriggerKey
	}{
		{
			"tab churn by penalty",
			func(s types.ScoreSnapshot) types.ScoreSnapshot {
				return withFactor(s, types.FactorTabSwitching, types.FactorResult{Penalty: 15, MaxWeight: 30})
			},
			types.TriggerTabSwitching,
		},
		{
			"tab churn by raw switches",
			func(s types.ScoreSnapshot) types.ScoreSnapshot {
				return withFactor(s, types.FactorTabSwitching, types.FactorResult{Penalty: 3, RawMetric: 8, MaxWeight: 30})
			},
			types.TriggerTabSwitching,
		},
		{
			"erratic mouse",
			func(s types.ScoreSnapshot) types.ScoreSnapshot {
				return withFactor(s, types.FactorErraticMouse, types.FactorResult{Penalty: 8, MaxWeight: 15})
			},
			types.TriggerErraticMouse,
		},
		{
			"anxious scrolling",
			func(s types.ScoreSnapshot) types.ScoreSnapshot {
				return withFactor(s, types.FactorRapidScroll, types.FactorResult{Penalty: 4, MaxWeight: 10})
			},
			types.TriggerAnxiousScroll,
		},
		{
			"late night",
			func(s types.ScoreSnapshot) types.ScoreSnapshot {
				return withFactor(s, types.FactorLateNight, types.FactorResult{Penalty: 8, MaxWeight: 15})
			},
			types.TriggerLateNight,
		},
		{
			"typing fatigue advisory",
			func(s types.ScoreSnapshot) types.ScoreSnapshot {
				s.Advisory[types.FactorTypingFatigue] = types.FactorResult{Penalty: 12, MaxWeight: 15}
				return s
			},
			types.TriggerTypingFatigue,
		},
		{
			"click accuracy advisory",
			func(s types.ScoreSnapshot) types.ScoreSnapshot {
				s.Advisory[types.FactorClickAccuracy] = types.FactorResult{Penalty: 10, MaxWeight: 12}
				return s
			},
			types.TriggerClickAccuracy,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEvaluator(nil)
			fired := e.Evaluate(tc.prep(snapshot(80)), t0)
			require.Len(t, fired, 1)
			assert.Equal(t, tc.key, fired[0].TriggerKey)
			assert.NotEmpty(t, fired[0].Title)
			assert.NotEmpty(t, fired[0].Suggestion)
		})
	}
}

func TestConsumeUnknownID(t *testing.T) {
	e := NewEvaluator(nil)
	assert.Nil(t, e.Consume("nope"))
}

func TestIndependentCooldownsPerKey(t *testing.T) {
	e := NewEvaluator(nil)

	s := withFactor(snapshot(80), types.FactorRapidScroll, types.FactorResult{Penalty: 4, MaxWeight: 10})
	require.Len(t, e.Evaluate(s, t0), 1)
	e.Consume(e.Active()[0].ID)

	// A different key fires freely while scroll is cooling down.
	s2 := withFactor(snapshot(80), types.FactorErraticMouse, types.FactorResult{Penalty: 8, MaxWeight: 15})
	fired := e.Evaluate(s2, t0.Add(time.Minute))
	require.Len(t, fired, 1)
	assert.Equal(t, types.TriggerErraticMouse, fired[0].TriggerKey)
}
