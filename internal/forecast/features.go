package forecast

import (
	"time"

	"focusd/internal/types"
)

// Feature normalization constants. Session length saturates at a full work
// day; variance saturates at stddev 20 on the 0-100 score scale.
const (
	maxSessionMinutes = 480.0
	maxScoreVariance  = 400.0

	// varianceWindow is how many trailing snapshots feed the rolling score
	// variance feature.
	varianceWindow = 10
)

// BuildTrainingSnapshot converts one score snapshot into the regressor's
// training representation. recent supplies the trailing snapshots (oldest
// first, ending at s) used for the rolling variance feature; sessionStart
// anchors the session-length feature.
func BuildTrainingSnapshot(s types.ScoreSnapshot, sessionStart time.Time, recent []types.ScoreSnapshot) types.TrainingSnapshot {
	return types.TrainingSnapshot{
		Timestamp:             s.Timestamp,
		BehavioralFeatures:    behavioralFeatures(s),
		PhysiologicalFeatures: physiologicalFeatures(s, sessionStart, recent),
		ExhaustionScore:       s.Score,
	}
}

// behavioralFeatures normalizes the score and each factor penalty by its
// weight cap into [0, 1]. Eight values: score, tab, idle, late-night, mouse,
// scroll, typing, click.
func behavioralFeatures(s types.ScoreSnapshot) []float64 {
	return []float64{
		s.Score / 100,
		normFactor(s, types.FactorTabSwitching),
		normFactor(s, types.FactorIdle),
		normFactor(s, types.FactorLateNight),
		normFactor(s, types.FactorErraticMouse),
		normFactor(s, types.FactorRapidScroll),
		normFactor(s, types.FactorTypingFatigue),
		normFactor(s, types.FactorClickAccuracy),
	}
}

// physiologicalFeatures produces the three contextual values: hour of day,
// session length, and rolling score variance, each in [0, 1]. A wearable
// integration can substitute real measurements without retraining from
// scratch because the dimensionality is fixed.
func physiologicalFeatures(s types.ScoreSnapshot, sessionStart time.Time, recent []types.ScoreSnapshot) []float64 {
	hour := float64(s.Timestamp.Hour()) / 24

	sessionMinutes := 0.0
	if !sessionStart.IsZero() && s.Timestamp.After(sessionStart) {
		sessionMinutes = s.Timestamp.Sub(sessionStart).Minutes()
	}
	sessionNorm := sessionMinutes / maxSessionMinutes
	if sessionNorm > 1 {
		sessionNorm = 1
	}

	varNorm := rollingVariance(recent) / maxScoreVariance
	if varNorm > 1 {
		varNorm = 1
	}

	return []float64{hour, sessionNorm, varNorm}
}

// normFactor returns the factor's penalty as a fraction of its weight cap.
func normFactor(s types.ScoreSnapshot, c types.FactorCategory) float64 {
	f := s.Factor(c)
	if f.MaxWeight <= 0 {
		return 0
	}
	v := f.Penalty / f.MaxWeight
	if v > 1 {
		v = 1
	}
	return v
}

// rollingVariance is the population variance of the last varianceWindow
// scores in recent.
func rollingVariance(recent []types.ScoreSnapshot) float64 {
	if len(recent) > varianceWindow {
		recent = recent[len(recent)-varianceWindow:]
	}
	if len(recent) < 2 {
		return 0
	}

	var sum float64
	for _, s := range recent {
		sum += s.Score
	}
	mean := sum / float64(len(recent))

	var v float64
	for _, s := range recent {
		d := s.Score - mean
		v += d * d
	}
	return v / float64(len(recent))
}

// featureWindow builds the SeqLen x FeatureDim model input from the tail of
// a score history. The session anchor is the first snapshot in history.
func featureWindow(history []types.ScoreSnapshot) [][]float64 {
	sessionStart := history[0].Timestamp
	tail := history
	if len(tail) > SeqLen {
		tail = tail[len(tail)-SeqLen:]
	}

	window := make([][]float64, 0, SeqLen)
	offset := len(history) - len(tail)
	for i, s := range tail {
		recent := history[:offset+i+1]
		snap := BuildTrainingSnapshot(s, sessionStart, recent)
		window = append(window, snap.Features())
	}
	// Pad short histories at the front by repeating the oldest vector so the
	// window shape is always SeqLen.
	for len(window) < SeqLen {
		window = append([][]float64{window[0]}, window...)
	}
	return window
}
