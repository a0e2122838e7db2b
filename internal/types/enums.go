package types

// EventType identifies the kind of activity event delivered by a sensor.
type EventType string

const (
	EventTabSwitch         EventType = "tab_switch"
	EventTabCreated        EventType = "tab_created"
	EventTabClosed         EventType = "tab_closed"
	EventBrowserFocus      EventType = "browser_focus"
	EventBrowserBlur       EventType = "browser_blur"
	EventIdleChange        EventType = "idle_change"
	EventMouseActivity     EventType = "mouse_activity"
	EventScrollActivity    EventType = "scroll_activity"
	EventKeystrokeActivity EventType = "keystroke_activity"
	EventTypingMetrics     EventType = "typing_metrics"
	EventClickAccuracy     EventType = "click_accuracy"
)

// KnownEventTypes is the complete set of event types the core accepts.
// Events with any other type are dropped silently (fail-open telemetry).
var KnownEventTypes = map[EventType]struct{}{
	EventTabSwitch:         {},
	EventTabCreated:        {},
	EventTabClosed:         {},
	EventBrowserFocus:      {},
	EventBrowserBlur:       {},
	EventIdleChange:        {},
	EventMouseActivity:     {},
	EventScrollActivity:    {},
	EventKeystrokeActivity: {},
	EventTypingMetrics:     {},
	EventClickAccuracy:     {},
}

// IdleState represents the OS-reported user presence state.
type IdleState string

const (
	IdleStateActive IdleState = "active"
	IdleStateIdle   IdleState = "idle"
	IdleStateLocked IdleState = "locked"
)

// FactorCategory identifies one contributor to the total score penalty.
type FactorCategory string

const (
	FactorTabSwitching FactorCategory = "tab_switching"
	FactorIdle         FactorCategory = "idle"
	FactorLateNight    FactorCategory = "late_night"
	FactorErraticMouse FactorCategory = "erratic_mouse"
	FactorRapidScroll  FactorCategory = "rapid_scroll"
	FactorOffHours     FactorCategory = "off_hours"

	// Advisory factors feed alert rules but carry no scoring weight.
	FactorTypingFatigue FactorCategory = "typing_fatigue"
	FactorClickAccuracy FactorCategory = "click_accuracy"
)

// Severity determines alert presentation priority in the UI.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// TriggerKey identifies an alert rule. Cooldowns are tracked per key,
// not per alert instance.
type TriggerKey string

const (
	TriggerScoreDanger   TriggerKey = "score_danger"
	TriggerScoreWarning  TriggerKey = "score_warning"
	TriggerTabSwitching  TriggerKey = "tab_switching"
	TriggerErraticMouse  TriggerKey = "erratic_mouse"
	TriggerAnxiousScroll TriggerKey = "anxious_scroll"
	TriggerTypingFatigue TriggerKey = "typing_fatigue"
	TriggerClickAccuracy TriggerKey = "click_accuracy"
	TriggerLateNight     TriggerKey = "late_night"
)

// WellnessType names the wellness exercise an alert's call-to-action opens.
type WellnessType string

const (
	WellnessBreathing WellnessType = "breathing"
	WellnessStretch   WellnessType = "stretch"
	WellnessEyeRest   WellnessType = "eye_rest"
	WellnessWalk      WellnessType = "walk"
	WellnessWindDown  WellnessType = "wind_down"
)

// Trend classifies the direction of the predicted score relative to current.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
	TrendCritical  Trend = "critical"
)

// RiskLevel is the coarse classification combining predicted score and
// time-to-threshold.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ResponseAction records how the user responded to an intervention.
type ResponseAction string

const (
	ActionDismissed     ResponseAction = "dismissed"
	ActionStarted       ResponseAction = "started"
	ActionCompleted     ResponseAction = "completed"
	ActionAutoDismissed ResponseAction = "auto_dismissed"
)

// ValidResponseAction reports whether a is one of the accepted response
// actions.
func ValidResponseAction(a ResponseAction) bool {
	switch a {
	case ActionDismissed, ActionStarted, ActionCompleted, ActionAutoDismissed:
		return true
	}
	return false
}

// InterventionType distinguishes the two advisory intervention strengths.
type InterventionType string

const (
	InterventionMild   InterventionType = "mild"
	InterventionUrgent InterventionType = "urgent"
)
