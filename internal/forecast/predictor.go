package forecast

import (
	"fmt"
	"log/slog"
	"math"

	"focusd/internal/types"
)

// Prediction thresholds and bounds.
const (
	// InterventionThreshold is the score at which time-to-threshold reaches
	// zero; it matches the mild intervention threshold.
	InterventionThreshold = 40.0

	// minModelHistory is the history length below which the predictor falls
	// back to linear regression.
	minModelHistory = SeqLen

	// confidenceSpan is how many trailing scores feed the variance-based
	// confidence estimate in model mode.
	confidenceSpan = 30

	modelConfidenceMin = 0.5
	modelConfidenceMax = 0.95

	// varianceScale is the score variance at which model confidence bottoms
	// out (stddev 20 on a 0-100 scale).
	varianceScale = 400.0
)

// Predictor turns an ordered score history into a PredictionResult. It never
// returns an error for scarce data: with fewer than minModelHistory
// snapshots (or no trained model) it degrades to a low-confidence linear
// extrapolation.
type Predictor struct {
	regressor SequenceRegressor
	clock     types.Clock
	logger    *slog.Logger
}

// NewPredictor creates a Predictor. A nil regressor forces fallback mode; a
// nil clock or logger falls back to defaults.
func NewPredictor(regressor SequenceRegressor, clock types.Clock, logger *slog.Logger) *Predictor {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Predictor{regressor: regressor, clock: clock, logger: logger}
}

// Predict forecasts the score HorizonMinutes ahead from the time-ordered
// history. An empty history yields a neutral stable prediction with floor
// confidence rather than an error.
func (p *Predictor) Predict(history []types.ScoreSnapshot) types.PredictionResult {
	now := p.clock.Now()

	if len(history) == 0 {
		return types.PredictionResult{
			PredictedScore: 50,
			Confidence:     0,
			Trend:          types.TrendStable,
			RiskLevel:      types.RiskMedium,
			Recommendation: "Not enough activity yet to forecast. Keep the session going.",
			GeneratedAt:    now,
		}
	}

	current := history[len(history)-1].Score

	var predicted float64
	var modelBased bool
	if len(history) >= minModelHistory && p.regressor != nil && p.regressor.Trained() {
		pred, err := p.regressor.Predict(featureWindow(history))
		if err != nil {
			p.logger.Warn("model prediction failed, using linear fallback", "error", err)
			predicted = linearForecast(history)
		} else {
			predicted = pred * 100
			modelBased = true
		}
	} else {
		predicted = linearForecast(history)
	}
	predicted = clampScore(predicted)

	confidence := fallbackConfidence(len(history))
	if modelBased {
		confidence = varianceConfidence(history)
	}

	ttt := timeToThreshold(current, predicted)
	trend := classifyTrend(predicted - current)
	risk := classifyRisk(predicted, ttt)

	return types.PredictionResult{
		PredictedScore:  predicted,
		Confidence:      confidence,
		TimeToThreshold: ttt,
		Trend:           trend,
		RiskLevel:       risk,
		Recommendation:  recommend(trend, risk, ttt, predicted),
		ModelBased:      modelBased,
		GeneratedAt:     now,
	}
}

// linearForecast fits least squares on index vs. score over the available
// points and extrapolates HorizonMinutes indices ahead.
func linearForecast(history []types.ScoreSnapshot) float64 {
	n := len(history)
	if n == 1 {
		return history[0].Score
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, s := range history {
		x := float64(i)
		sumX += x
		sumY += s.Score
		sumXY += x * s.Score
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if math.Abs(denom) < 1e-12 {
		return history[n-1].Score
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	return slope*float64(n-1+HorizonMinutes) + intercept
}

// fallbackConfidence is min(0.5, n/60): confidence grows with sample count
// and never exceeds the model-mode floor.
func fallbackConfidence(n int) float64 {
	c := float64(n) / float64(SeqLen)
	if c > modelConfidenceMin {
		c = modelConfidenceMin
	}
	return c
}

// varianceConfidence derives model-mode confidence from the variance of the
// last confidenceSpan scores: higher variance means lower confidence,
// clamped to [0.5, 0.95]. Monotonically non-increasing in variance.
func varianceConfidence(history []types.ScoreSnapshot) float64 {
	tail := history
	if len(tail) > confidenceSpan {
		tail = tail[len(tail)-confidenceSpan:]
	}

	var sum float64
	for _, s := range tail {
		sum += s.Score
	}
	mean := sum / float64(len(tail))

	var variance float64
	for _, s := range tail {
		d := s.Score - mean
		variance += d * d
	}
	variance /= float64(len(tail))

	norm := variance / varianceScale
	if norm > 1 {
		norm = 1
	}
	return modelConfidenceMax - (modelConfidenceMax-modelConfidenceMin)*norm
}

// timeToThreshold returns the minutes until the score is expected to cross
// the intervention threshold. Zero when the current score is already at or
// below it; nil (infinite) when the forecast is not declining; otherwise the
// linear interpolation of the decline rate.
func timeToThreshold(current, predicted float64) *float64 {
	if current <= InterventionThreshold {
		zero := 0.0
		return &zero
	}
	if predicted >= current {
		return nil
	}

	ratePerMinute := (current - predicted) / float64(HorizonMinutes)
	minutes := (current - InterventionThreshold) / ratePerMinute
	return &minutes
}

// classifyTrend buckets the predicted-minus-current difference.
func classifyTrend(diff float64) types.Trend {
	switch {
	case diff > 5:
		return types.TrendImproving
	case diff > -5:
		return types.TrendStable
	case diff > -15:
		return types.TrendDeclining
	default:
		return types.TrendCritical
	}
}

// classifyRisk combines predicted score and time-to-threshold into the
// coarse risk level.
func classifyRisk(predicted float64, ttt *float64) types.RiskLevel {
	switch {
	case (ttt != nil && *ttt < 15) || predicted < 20:
		return types.RiskCritical
	case (ttt != nil && *ttt < 30) || predicted < 40:
		return types.RiskHigh
	case predicted < 60:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// recommend generates the advisory text from a fixed decision table. Fully
// deterministic: the same inputs always produce the same text.
func recommend(trend types.Trend, risk types.RiskLevel, ttt *float64, predicted float64) string {
	if ttt != nil && *ttt == 0 {
		return "Your attention is already below the intervention threshold. Take a real break now — a short walk beats powering through."
	}

	switch risk {
	case types.RiskCritical:
		if ttt != nil {
			return fmt.Sprintf("Sharp decline ahead: roughly %d minutes until your attention drops below %0.f. Stop and take a break before it does.", int(math.Round(*ttt)), InterventionThreshold)
		}
		return "Your predicted attention is critically low. Plan a substantial break within the next few minutes."
	case types.RiskHigh:
		if trend == types.TrendCritical || trend == types.TrendDeclining {
			return "You are trending down fast. Wrap up the current task and schedule a break in the next half hour."
		}
		return fmt.Sprintf("Predicted attention is low (%.0f). Lighter tasks or a short pause would help.", predicted)
	case types.RiskMedium:
		if trend == types.TrendImproving {
			return "You are recovering. Keep the current pace and avoid picking up new context."
		}
		return "Attention is holding but not strong. A five-minute stretch would buy you a better hour."
	default:
		if trend == types.TrendImproving {
			return "Attention is strong and improving. Good time for your hardest task."
		}
		return "Attention is stable and healthy. No action needed."
	}
}

// GenerateInsight produces one deterministic observation from the history,
// preferring the strongest signal: sustained decline, dominant distraction
// factor, or overall stability.
func (p *Predictor) GenerateInsight(history []types.ScoreSnapshot) types.Insight {
	if len(history) < 2 {
		return types.Insight{
			Kind:       "baseline",
			Title:      "Collecting baseline",
			Body:       "Not enough history yet for insights. They appear after a few minutes of activity.",
			Confidence: 0.2,
		}
	}

	first, last := history[0].Score, history[len(history)-1].Score
	diff := last - first

	// Dominant factor across the window.
	totals := map[types.FactorCategory]float64{}
	for _, s := range history {
		for c, f := range s.Factors {
			totals[c] += f.Penalty
		}
	}
	var topCat types.FactorCategory
	var topSum float64
	for c, sum := range totals {
		if sum > topSum {
			topCat, topSum = c, sum
		}
	}

	switch {
	case diff <= -15:
		return types.Insight{
			Kind:       "decline",
			Title:      "Attention declined this session",
			Body:       fmt.Sprintf("Your score fell %.0f points, with %s as the biggest contributor.", -diff, factorLabel(topCat)),
			Confidence: 0.8,
		}
	case topSum > 0 && topSum/float64(len(history)) >= 8:
		return types.Insight{
			Kind:       "dominant_factor",
			Title:      fmt.Sprintf("%s is your main drain", factorLabel(topCat)),
			Body:       fmt.Sprintf("%s accounted for the largest share of your penalties this session.", factorLabel(topCat)),
			Confidence: 0.7,
		}
	case diff >= 10:
		return types.Insight{
			Kind:       "recovery",
			Title:      "Nice recovery",
			Body:       fmt.Sprintf("Your score climbed %.0f points over this session.", diff),
			Confidence: 0.7,
		}
	default:
		return types.Insight{
			Kind:       "stable",
			Title:      "Steady session",
			Body:       "Your attention held steady. Consistency like this is worth protecting.",
			Confidence: 0.6,
		}
	}
}

// factorLabel renders a category for insight text.
func factorLabel(c types.FactorCategory) string {
	switch c {
	case types.FactorTabSwitching:
		return "tab switching"
	case types.FactorIdle:
		return "idle time"
	case types.FactorLateNight:
		return "late-night usage"
	case types.FactorErraticMouse:
		return "erratic pointer motion"
	case types.FactorRapidScroll:
		return "rapid scrolling"
	case types.FactorOffHours:
		return "off-hours work"
	case types.FactorTypingFatigue:
		return "typing fatigue"
	case types.FactorClickAccuracy:
		return "click accuracy"
	default:
		return string(c)
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
