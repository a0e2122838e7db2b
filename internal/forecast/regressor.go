// Package forecast implements the attention forecasting engine: a sequence
// regressor over windowed feature vectors, a linear-regression fallback for
// scarce history, a trainer with a synthetic bootstrap, and an off-path
// worker that keeps prediction and training off the ingestion path.
package forecast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/klauspost/compress/gzip"

	"focusd/internal/types"
)

// Sequence window geometry. The regressor consumes the last SeqLen feature
// vectors (one per minute) and predicts the attention score HorizonMinutes
// ahead as a scalar in [0, 1].
const (
	SeqLen         = 60
	HorizonMinutes = 30
)

// SequenceRegressor is any model mapping a fixed-length window of feature
// vectors to a scalar prediction in [0, 1]. The shipped implementation is a
// ridge regressor over pooled window statistics; any sequence-to-one model
// honoring the same contract is substitutable.
type SequenceRegressor interface {
	// Fit trains the model on windows (each SeqLen x FeatureDim) and their
	// scalar targets in [0, 1]. It returns the final training loss (MSE).
	Fit(windows [][][]float64, targets []float64) (loss float64, err error)

	// Predict maps one SeqLen x FeatureDim window to a scalar in [0, 1].
	Predict(window [][]float64) (float64, error)

	// Save serializes the fitted model.
	Save(w io.Writer) error

	// Load restores a model serialized by Save.
	Load(r io.Reader) error

	// Trained reports whether the model has been fitted or loaded.
	Trained() bool
}

// Pooled statistics per feature column: mean, last value, and least-squares
// slope across the window. 11 features x 3 statistics + bias.
const (
	statsPerFeature = 3
	inputDim        = types.FeatureDim*statsPerFeature + 1
)

// Ridge hyperparameters. Training is plain full-batch gradient descent with
// L2 regularization; deterministic for a given dataset.
const (
	ridgeLambda = 0.01
	learnRate   = 0.05
	epochs      = 400
)

// RidgeRegressor is the default SequenceRegressor: it pools each feature
// column of the window into (mean, last, slope) and fits a ridge-regularized
// linear model on the pooled vector.
type RidgeRegressor struct {
	weights []float64
	trained bool
}

// NewRidgeRegressor creates an unfitted RidgeRegressor.
func NewRidgeRegressor() *RidgeRegressor {
	return &RidgeRegressor{}
}

// Trained reports whether the model has been fitted or loaded.
func (r *RidgeRegressor) Trained() bool { return r.trained }

// Fit trains the model with full-batch gradient descent. Windows that are
// not SeqLen x FeatureDim are rejected.
func (r *RidgeRegressor) Fit(windows [][][]float64, targets []float64) (float64, error) {
	if len(windows) == 0 || len(windows) != len(targets) {
		return 0, fmt.Errorf("forecast: fit requires matching windows and targets, got %d/%d", len(windows), len(targets))
	}

	inputs := make([][]float64, len(windows))
	for i, w := range windows {
		pooled, err := poolWindow(w)
		if err != nil {
			return 0, err
		}
		inputs[i] = pooled
	}

	w := make([]float64, inputDim)
	n := float64(len(inputs))

	var loss float64
	for epoch := 0; epoch < epochs; epoch++ {
		grad := make([]float64, inputDim)
		loss = 0

		for i, x := range inputs {
			pred := dot(w, x)
			diff := pred - targets[i]
			loss += diff * diff
			for j := range grad {
				grad[j] += diff * x[j]
			}
		}
		loss /= n

		for j := range w {
			// L2 penalty on everything but the bias term.
			reg := 0.0
			if j < inputDim-1 {
				reg = ridgeLambda * w[j]
			}
			w[j] -= learnRate * (grad[j]/n + reg)
		}
	}

	r.weights = w
	r.trained = true
	return loss, nil
}

// Predict maps one window to a scalar in [0, 1].
func (r *RidgeRegressor) Predict(window [][]float64) (float64, error) {
	if !r.trained {
		return 0, fmt.Errorf("forecast: predict on unfitted model")
	}
	x, err := poolWindow(window)
	if err != nil {
		return 0, err
	}
	p := dot(r.weights, x)
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p, nil
}

// modelArtifact is the serialized form of a fitted RidgeRegressor.
type modelArtifact struct {
	Version  int       `json:"version"`
	InputDim int       `json:"input_dim"`
	Weights  []float64 `json:"weights"`
	SavedAt  time.Time `json:"saved_at"`
}

const artifactVersion = 1

// Save writes the fitted weights as gzip-compressed JSON.
func (r *RidgeRegressor) Save(w io.Writer) error {
	if !r.trained {
		return fmt.Errorf("forecast: save on unfitted model")
	}
	gz := gzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(modelArtifact{
		Version:  artifactVersion,
		InputDim: inputDim,
		Weights:  r.weights,
		SavedAt:  time.Now().UTC(),
	}); err != nil {
		gz.Close()
		return fmt.Errorf("forecast: encoding model artifact: %w", err)
	}
	return gz.Close()
}

// Load restores weights from a Save artifact. A dimension mismatch (e.g. an
// artifact from an older feature layout) is rejected rather than silently
// producing garbage predictions.
func (r *RidgeRegressor) Load(src io.Reader) error {
	gz, err := gzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("forecast: opening model artifact: %w", err)
	}
	defer gz.Close()

	var a modelArtifact
	if err := json.NewDecoder(gz).Decode(&a); err != nil {
		return fmt.Errorf("forecast: decoding model artifact: %w", err)
	}
	if a.Version != artifactVersion || a.InputDim != inputDim || len(a.Weights) != inputDim {
		return types.NewAppError(types.ErrCodeInternalModel,
			fmt.Sprintf("model artifact shape mismatch: version=%d dim=%d", a.Version, a.InputDim), nil)
	}

	r.weights = a.Weights
	r.trained = true
	return nil
}

// Marshal serializes the model to bytes (gzip JSON), for artifact storage.
func (r *RidgeRegressor) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// poolWindow collapses a SeqLen x FeatureDim window into the pooled input
// vector (mean, last, slope per feature, plus bias).
func poolWindow(window [][]float64) ([]float64, error) {
	if len(window) != SeqLen {
		return nil, fmt.Errorf("forecast: window length %d, want %d", len(window), SeqLen)
	}

	out := make([]float64, 0, inputDim)
	for f := 0; f < types.FeatureDim; f++ {
		var sum float64
		col := make([]float64, SeqLen)
		for t, row := range window {
			v := 0.0
			if f < len(row) {
				v = row[f]
			}
			col[t] = v
			sum += v
		}
		mean := sum / SeqLen
		last := col[SeqLen-1]
		out = append(out, mean, last, columnSlope(col))
	}
	out = append(out, 1) // bias
	return out, nil
}

// columnSlope returns the least-squares slope of v against its index.
func columnSlope(v []float64) float64 {
	n := float64(len(v))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range v {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if math.Abs(denom) < 1e-12 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
