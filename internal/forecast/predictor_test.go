package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusd/internal/types"
)

type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

var p0 = time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC)

// scoreHistory builds minute-spaced snapshots from the given scores, ending
// just before p0.
func scoreHistory(scores ...float64) []types.ScoreSnapshot {
	out := make([]types.ScoreSnapshot, len(scores))
	for i, s := range scores {
		out[i] = types.ScoreSnapshot{
			Timestamp: p0.Add(time.Duration(i-len(scores)) * time.Minute),
			Score:     s,
			Factors:   map[types.FactorCategory]types.FactorResult{},
		}
	}
	return out
}

// flatHistory builds n snapshots all at the same score.
func flatHistory(n int, score float64) []types.ScoreSnapshot {
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = score
	}
	return scoreHistory(scores...)
}

func newFallbackPredictor() *Predictor {
	return NewPredictor(nil, &mockClock{now: p0}, nil)
}

func TestEmptyHistoryIsNeutral(t *testing.T) {
	r := newFallbackPredictor().Predict(nil)
	assert.Equal(t, 50.0, r.PredictedScore)
	assert.Equal(t, 0.0, r.Confidence)
	assert.Equal(t, types.TrendStable, r.Trend)
	assert.False(t, r.ModelBased)
}

func TestFallbackExtrapolatesLinearDecline(t *testing.T) {
	// One point per minute dropping one point per minute from 90.
	scores := make([]float64, 30)
	for i := range scores {
		scores[i] = 90 - float64(i)
	}

	r := newFallbackPredictor().Predict(scoreHistory(scores...))

	// Current 61, slope -1/min, 30 minutes ahead: 31.
	assert.InDelta(t, 31, r.PredictedScore, 0.5)
	assert.False(t, r.ModelBased)
	assert.Equal(t, types.TrendCritical, r.Trend)
}

func TestFallbackConfidenceGrowsWithSamplesCappedAtHalf(t *testing.T) {
	p := newFallbackPredictor()

	r := p.Predict(flatHistory(15, 80))
	assert.InDelta(t, 0.25, r.Confidence, 1e-9)

	r = p.Predict(flatHistory(120, 80))
	assert.Equal(t, 0.5, r.Confidence, "fallback confidence never exceeds 0.5")
}

func TestTimeToThresholdZeroWhenAlreadyBelow(t *testing.T) {
	r := newFallbackPredictor().Predict(flatHistory(10, 35))
	require.NotNil(t, r.TimeToThreshold)
	assert.Equal(t, 0.0, *r.TimeToThreshold)
}

func TestTimeToThresholdNilWhenNotDeclining(t *testing.T) {
	r := newFallbackPredictor().Predict(flatHistory(10, 80))
	assert.Nil(t, r.TimeToThreshold)
	assert.Equal(t, types.RiskLow, r.RiskLevel)
}

func TestTimeToThresholdInterpolates(t *testing.T) {
	// Declining 1 point/min from 70: current 61, predicted ~31. The 21
	// points down to the threshold take about 21 minutes.
	scores := make([]float64, 10)
	for i := range scores {
		scores[i] = 70 - float64(i)
	}
	r := newFallbackPredictor().Predict(scoreHistory(scores...))

	require.NotNil(t, r.TimeToThreshold)
	assert.InDelta(t, 21, *r.TimeToThreshold, 1.5)
	assert.Equal(t, types.RiskHigh, r.RiskLevel)
}

func TestTrendClassification(t *testing.T) {
	cases := []struct {
		diff float64
		want types.Trend
	}{
		{10, types.TrendImproving},
		{5, types.TrendStable},
		{0, types.TrendStable},
		{-4, types.TrendStable},
		// The buckets are half-open: a drop of exactly 5 is already
		// declining, and exactly 15 is already critical.
		{-5, types.TrendDeclining},
		{-14, types.TrendDeclining},
		{-15, types.TrendCritical},
		{-16, types.TrendCritical},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyTrend(tc.diff), "diff %v", tc.diff)
	}
}

func TestRiskClassification(t *testing.T) {
	m := func(v float64) *float64 { return &v }

	assert.Equal(t, types.RiskCritical, classifyRisk(50, m(10)))
	assert.Equal(t, types.RiskCritical, classifyRisk(15, nil))
	assert.Equal(t, types.RiskHigh, classifyRisk(50, m(25)))
	assert.Equal(t, types.RiskHigh, classifyRisk(35, nil))
	assert.Equal(t, types.RiskMedium, classifyRisk(55, nil))
	assert.Equal(t, types.RiskLow, classifyRisk(75, nil))
}

func TestVarianceConfidenceMonotone(t *testing.T) {
	flat := varianceConfidence(flatHistory(30, 70))
	assert.Equal(t, modelConfidenceMax, flat)

	wobble := make([]float64, 30)
	for i := range wobble {
		wobble[i] = 70
		if i%2 == 0 {
			wobble[i] = 40
		}
	}
	noisy := varianceConfidence(scoreHistory(wobble...))
	assert.Less(t, noisy, flat)
	assert.GreaterOrEqual(t, noisy, modelConfidenceMin)
}

func TestRecommendationIsDeterministic(t *testing.T) {
	h := flatHistory(10, 35)
	p := newFallbackPredictor()
	a := p.Predict(h)
	b := p.Predict(h)
	assert.Equal(t, a.Recommendation, b.Recommendation)
	assert.NotEmpty(t, a.Recommendation)
}

func TestGenerateInsightDecline(t *testing.T) {
	scores := make([]float64, 20)
	for i := range scores {
		scores[i] = 90 - 2*float64(i)
	}
	h := scoreHistory(scores...)
	for i := range h {
		h[i].Factors[types.FactorTabSwitching] = types.FactorResult{Penalty: 12, MaxWeight: 30}
	}

	in := newFallbackPredictor().GenerateInsight(h)
	assert.Equal(t, "decline", in.Kind)
	assert.Contains(t, in.Body, "tab switching")
}

func TestGenerateInsightStable(t *testing.T) {
	in := newFallbackPredictor().GenerateInsight(flatHistory(20, 82))
	assert.Equal(t, "stable", in.Kind)
}

func TestGenerateInsightBaselineWhenSparse(t *testing.T) {
	in := newFallbackPredictor().GenerateInsight(flatHistory(1, 80))
	assert.Equal(t, "baseline", in.Kind)
}
