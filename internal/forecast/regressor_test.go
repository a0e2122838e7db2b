package forecast

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusd/internal/types"
)

// syntheticWindow builds a SeqLen x FeatureDim window whose first feature
// ramps linearly from start to end; other features are zero.
func syntheticWindow(start, end float64) [][]float64 {
	w := make([][]float64, SeqLen)
	for t := range w {
		row := make([]float64, types.FeatureDim)
		row[0] = start + (end-start)*float64(t)/float64(SeqLen-1)
		w[t] = row
	}
	return w
}

// rampDataset generates windows where the target continues the ramp of the
// first feature, a relationship the pooled slope statistic captures exactly.
func rampDataset(n int, rng *rand.Rand) (windows [][][]float64, targets []float64) {
	for i := 0; i < n; i++ {
		start := rng.Float64() * 0.5
		end := start + (rng.Float64()-0.3)*0.4
		windows = append(windows, syntheticWindow(start, end))
		target := end + (end-start)*0.5
		if target < 0 {
			target = 0
		}
		if target > 1 {
			target = 1
		}
		targets = append(targets, target)
	}
	return windows, targets
}

func TestFitLearnsLinearTrend(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	windows, targets := rampDataset(200, rng)

	r := NewRidgeRegressor()
	loss, err := r.Fit(windows, targets)
	require.NoError(t, err)
	require.True(t, r.Trained())
	assert.Less(t, loss, 0.05, "training loss should shrink on learnable data")

	// A declining window should predict below its last value; a rising one
	// above it.
	down, err := r.Predict(syntheticWindow(0.8, 0.5))
	require.NoError(t, err)
	up, err := r.Predict(syntheticWindow(0.5, 0.8))
	require.NoError(t, err)
	assert.Less(t, down, up)
}

func TestPredictBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	windows, targets := rampDataset(100, rng)

	r := NewRidgeRegressor()
	_, err := r.Fit(windows, targets)
	require.NoError(t, err)

	p, err := r.Predict(syntheticWindow(0, 0))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
}

func TestPredictRejectsUnfittedAndBadShape(t *testing.T) {
	r := NewRidgeRegressor()
	_, err := r.Predict(syntheticWindow(0, 1))
	assert.Error(t, err, "unfitted model")

	rng := rand.New(rand.NewSource(1))
	windows, targets := rampDataset(50, rng)
	_, err = r.Fit(windows, targets)
	require.NoError(t, err)

	_, err = r.Predict(syntheticWindow(0, 1)[:10])
	assert.Error(t, err, "short window")
}

func TestFitRejectsMismatchedInputs(t *testing.T) {
	r := NewRidgeRegressor()
	_, err := r.Fit(nil, nil)
	assert.Error(t, err)

	_, err = r.Fit([][][]float64{syntheticWindow(0, 1)}, []float64{0.5, 0.6})
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	windows, targets := rampDataset(80, rng)

	r := NewRidgeRegressor()
	_, err := r.Fit(windows, targets)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Save(&buf))

	restored := NewRidgeRegressor()
	require.NoError(t, restored.Load(&buf))
	require.True(t, restored.Trained())

	w := syntheticWindow(0.4, 0.6)
	a, err := r.Predict(w)
	require.NoError(t, err)
	b, err := restored.Predict(w)
	require.NoError(t, err)
	assert.InDelta(t, a, b, 1e-12)
}

func TestLoadRejectsShapeMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	windows, targets := rampDataset(50, rng)

	r := NewRidgeRegressor()
	_, err := r.Fit(windows, targets)
	require.NoError(t, err)

	// Corrupt the artifact by truncating the weight vector.
	r.weights = r.weights[:5]
	var buf bytes.Buffer
	require.NoError(t, r.Save(&buf))

	restored := NewRidgeRegressor()
	err = restored.Load(&buf)
	require.Error(t, err)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalModel, appErr.Code)
	assert.False(t, restored.Trained())
}

func TestSaveUnfittedFails(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, NewRidgeRegressor().Save(&buf))
}

func TestColumnSlope(t *testing.T) {
	assert.InDelta(t, 1.0, columnSlope([]float64{0, 1, 2, 3}), 1e-12)
	assert.InDelta(t, 0.0, columnSlope([]float64{5, 5, 5}), 1e-12)
	assert.True(t, math.Signbit(columnSlope([]float64{3, 2, 1})))
}
