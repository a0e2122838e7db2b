// Package types defines the shared domain model for the focusd core:
// activity events, score snapshots, interventions, alerts, training data and
// prediction results. Types here are plain data carriers; behavior lives in
// the packages that own each concern.
package types

import (
	"time"
)

// EventPayload carries the type-specific fields of an ActivityEvent. Fields
// not relevant to the event's type are left at their zero value; validation
// is per-type and happens at the ingestion boundary.
type EventPayload struct {
	// mouse_activity
	DirectionChanges int     `json:"direction_changes,omitempty" validate:"min=0"`
	AvgSpeedPxSec    float64 `json:"avg_speed_px_sec,omitempty" validate:"min=0"`

	// scroll_activity
	RapidScrolls int `json:"rapid_scrolls,omitempty" validate:"min=0"`

	// idle_change
	IdleState IdleState `json:"idle_state,omitempty"`

	// keystroke_activity / typing_metrics
	Keystrokes    int     `json:"keystrokes,omitempty" validate:"min=0"`
	KeysPerMinute float64 `json:"keys_per_minute,omitempty" validate:"min=0"`
	ErrorRate     float64 `json:"error_rate,omitempty" validate:"min=0,max=1"`

	// click_accuracy
	Clicks    int `json:"clicks,omitempty" validate:"min=0"`
	Misclicks int `json:"misclicks,omitempty" validate:"min=0"`
}

// ActivityEvent is one typed telemetry observation. Immutable once created.
type ActivityEvent struct {
	Type      EventType    `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   EventPayload `json:"payload"`
}

// FactorResult is one category's contribution to the score penalty.
// Penalty is always within [0, MaxWeight].
type FactorResult struct {
	Penalty   float64 `json:"penalty"`
	RawMetric float64 `json:"raw_metric"`
	// Detail carries a non-numeric raw metric (e.g. the idle state name)
	// when the number alone is ambiguous.
	Detail    string  `json:"detail,omitempty"`
	MaxWeight float64 `json:"max_weight"`
}

// ScoreSnapshot is one immutable scoring-tick result. Score is the clamp of
// 100 minus the sum of scored factor penalties to [0, 100], even when the raw
// penalty sum exceeds 100.
type ScoreSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`

	// Factors holds the six weighted scoring categories.
	Factors map[FactorCategory]FactorResult `json:"factors"`

	// Advisory holds zero-weight factors (typing fatigue, click accuracy)
	// evaluated for alerting only. They never reduce Score.
	Advisory map[FactorCategory]FactorResult `json:"advisory,omitempty"`
}

// PenaltySum returns the raw (unclamped) sum of scored factor penalties.
func (s ScoreSnapshot) PenaltySum() float64 {
	var sum float64
	for _, f := range s.Factors {
		sum += f.Penalty
	}
	return sum
}

// Factor returns the named scored or advisory factor, searching the scored
// set first. The zero FactorResult is returned when the category is absent.
func (s ScoreSnapshot) Factor(c FactorCategory) FactorResult {
	if f, ok := s.Factors[c]; ok {
		return f
	}
	return s.Advisory[c]
}

// InterventionRecord captures a fired advisory intervention and, once the UI
// collaborator reports back, the user's response.
type InterventionRecord struct {
	ID        string           `json:"id"`
	Type      InterventionType `json:"type"`
	Score     float64          `json:"score"`
	Action    ResponseAction   `json:"action,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// AlertDefinition is the static catalog entry for one alert rule's
// presentation content.
type AlertDefinition struct {
	Severity     Severity     `json:"severity"`
	TriggerKey   TriggerKey   `json:"trigger_key"`
	Title        string       `json:"title"`
	Message      string       `json:"message"`
	Suggestion   string       `json:"suggestion"`
	CTALabel     string       `json:"cta_label"`
	WellnessType WellnessType `json:"wellness_type"`
}

// Alert is a fired instance of an AlertDefinition, queued for the UI
// collaborator until consumed.
type Alert struct {
	ID      string    `json:"id"`
	FiredAt time.Time `json:"fired_at"`
	AlertDefinition
}

// TrainingSnapshot is one observation used to fit the sequence regressor.
// Snapshots are retained for a bounded window (7 days) and then purged.
type TrainingSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	// BehavioralFeatures are normalized [0,1] values derived from the factor
	// breakdown (8 values: score, tab, idle, late-night, mouse, scroll,
	// typing, click).
	BehavioralFeatures []float64 `json:"behavioral_features"`

	// PhysiologicalFeatures are normalized [0,1] contextual values (3 values:
	// hour of day, session minutes, recent score variance). Named for the
	// optional wearable collaborator that can substitute real measurements.
	PhysiologicalFeatures []float64 `json:"physiological_features"`

	// ExhaustionScore is the attention score on the usual 0-100 scale
	// (100 = optimal) observed at Timestamp; it doubles as the regression
	// target when a snapshot 30 minutes later exists.
	ExhaustionScore float64 `json:"exhaustion_score"`
}

// FeatureDim is the width of the combined feature vector consumed by the
// sequence regressor (8 behavioral + 3 physiological).
const FeatureDim = 11

// Features returns the combined behavioral+physiological vector, padded or
// truncated to FeatureDim so a malformed stored snapshot cannot skew the
// regressor input shape.
func (t TrainingSnapshot) Features() []float64 {
	v := make([]float64, 0, FeatureDim)
	v = append(v, t.BehavioralFeatures...)
	v = append(v, t.PhysiologicalFeatures...)
	for len(v) < FeatureDim {
		v = append(v, 0)
	}
	return v[:FeatureDim]
}

// PredictionResult is the Forecasting Engine's output for one predict call.
type PredictionResult struct {
	PredictedScore float64 `json:"predicted_score"`
	Confidence     float64 `json:"confidence"`

	// TimeToThreshold is the minutes until the score is expected to cross the
	// intervention threshold (40). Nil means the score is not declining
	// toward it (infinite). Zero means the current score is already at or
	// below the threshold.
	TimeToThreshold *float64 `json:"time_to_threshold_minutes"`

	Trend          Trend     `json:"trend"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Recommendation string    `json:"recommendation"`
	ModelBased     bool      `json:"model_based"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// TrainingResult reports the outcome of a trainModel call. Success is false,
// without error, when fewer than the minimum snapshots are stored.
type TrainingResult struct {
	Success    bool      `json:"success"`
	Samples    int       `json:"samples"`
	Loss       float64   `json:"loss,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	TrainedAt  time.Time `json:"trained_at,omitempty"`
}

// ForecastStatus reports the Forecasting Engine's readiness.
type ForecastStatus struct {
	Ready         bool       `json:"ready"`
	SnapshotCount int        `json:"snapshot_count"`
	LastTraining  *time.Time `json:"last_training,omitempty"`
}

// Insight is a deterministic, human-readable observation derived from score
// history, surfaced on the dashboard.
type Insight struct {
	Kind       string  `json:"kind"`
	Title      string  `json:"title"`
	Body       string  `json:"body"`
	Confidence float64 `json:"confidence"`
}

// DailySummary aggregates one day of scoring activity for the dashboard.
type DailySummary struct {
	Date              string  `json:"date"` // YYYY-MM-DD
	AvgScore          float64 `json:"avg_score"`
	MinScore          float64 `json:"min_score"`
	MaxScore          float64 `json:"max_score"`
	InterventionCount int     `json:"intervention_count"`
	ActiveMinutes     int     `json:"active_minutes"`
}

// HourlyScore is one hour-bucketed average for the dashboard sparkline.
type HourlyScore struct {
	Hour     time.Time `json:"hour"`
	AvgScore float64   `json:"avg_score"`
	Samples  int       `json:"samples"`
}

// DashboardData is the aggregate payload behind getDashboardData.
type DashboardData struct {
	CurrentScore    float64                         `json:"current_score"`
	Factors         map[FactorCategory]FactorResult `json:"factors"`
	SessionDuration time.Duration                   `json:"session_duration"`
	ActiveTime      time.Duration                   `json:"active_time"`
	IdleTime        time.Duration                   `json:"idle_time"`
	TabSwitches     int                             `json:"tab_switches"`
	HourlyScores    []HourlyScore                   `json:"hourly_scores"`
	Interventions   []InterventionRecord            `json:"interventions"`
	DailySummaries  []DailySummary                  `json:"daily_summaries"`
	Trend           Trend                           `json:"trend"`
	DistractionPeak string                          `json:"distraction_peak,omitempty"`
	Insights        []Insight                       `json:"insights"`
	IdleState       IdleState                       `json:"idle_state"`
}

// ScoreReport is the compact payload behind getScore.
type ScoreReport struct {
	Score           float64                         `json:"score"`
	Factors         map[FactorCategory]FactorResult `json:"factors"`
	SessionDuration time.Duration                   `json:"session_duration"`
	IdleState       IdleState                       `json:"idle_state"`
}

// InterventionNotice is the fire-and-forget payload sent to the UI
// collaborator when an intervention fires.
type InterventionNotice struct {
	ID        string    `json:"id"`
	Score     float64   `json:"score"`
	IsUrgent  bool      `json:"is_urgent"`
	Timestamp time.Time `json:"timestamp"`
}
