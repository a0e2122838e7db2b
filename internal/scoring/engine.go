// Package scoring implements the pure attention scoring function. Given the
// trailing event window, the current idle status and a timestamp, it produces
// an immutable ScoreSnapshot: a 0-100 score plus the per-category factor
// breakdown consumed by alerting and the dashboard.
//
// Six weighted categories contribute penalties; the weights sum to 100 and no
// category may exceed its weight:
//
//	tab/context switching  30
//	idle/locked            20
//	late-night usage       15
//	erratic pointer motion 15
//	rapid scrolling        10
//	off-hours irregularity 10
//
// score = clamp(100 - sum(penalties), 0, 100)
//
// Two additional advisory factors (typing fatigue, click accuracy) are
// evaluated for alert rules only and never reduce the score.
package scoring

import (
	"time"

	"focusd/internal/types"
	"focusd/internal/window"
)

// Category weights. The six scored weights sum to 100.
const (
	WeightTabSwitching = 30.0
	WeightIdle         = 20.0
	WeightLateNight    = 15.0
	WeightErraticMouse = 15.0
	WeightRapidScroll  = 10.0
	WeightOffHours     = 10.0

	// Advisory caps (zero scoring weight).
	CapTypingFatigue = 15.0
	CapClickAccuracy = 12.0
)

// Lookback spans for the activity-derived factors.
const (
	activitySpan = 2 * time.Minute
	metricsSpan  = 5 * time.Minute
)

// minIdleMinutes is the continuous idle time below which no idle penalty
// applies.
const minIdleMinutes = 5.0

// IdleStatus is the slice of session state the scorer needs: the current
// presence state and when it began.
type IdleStatus struct {
	State types.IdleState
	Since time.Time
}

// Score computes a ScoreSnapshot from the window and idle status at the
// given instant. It is a pure function: it never mutates the window and the
// same inputs always produce the same snapshot.
func Score(w *window.Window, idle IdleStatus, now time.Time) types.ScoreSnapshot {
	factors := map[types.FactorCategory]types.FactorResult{
		types.FactorTabSwitching: tabFactor(w, now),
		types.FactorIdle:         idleFactor(w, idle, now),
		types.FactorLateNight:    lateNightFactor(now),
		types.FactorErraticMouse: mouseFactor(w, now),
		types.FactorRapidScroll:  scrollFactor(w, now),
		types.FactorOffHours:     offHoursFactor(now),
	}

	var penalty float64
	for _, f := range factors {
		penalty += f.Penalty
	}

	return types.ScoreSnapshot{
		Timestamp: now,
		Score:     clamp(100-penalty, 0, 100),
		Factors:   factors,
		Advisory: map[types.FactorCategory]types.FactorResult{
			types.FactorTypingFatigue: typingFactor(w, now),
			types.FactorClickAccuracy: clickFactor(w, now),
		},
	}
}

// tabFactor scores context-switching churn over the last two minutes.
// activity = switches + 0.5*creations; penalty = min(3*activity, 30).
// RawMetric carries the raw switch count for the tab_switching alert rule.
func tabFactor(w *window.Window, now time.Time) types.FactorResult {
	since := now.Add(-activitySpan)
	switches := w.CountType(types.EventTabSwitch, since)
	creations := w.CountType(types.EventTabCreated, since)

	activity := float64(switches) + 0.5*float64(creations)
	return types.FactorResult{
		Penalty:   min(3*activity, WeightTabSwitching),
		RawMetric: float64(switches),
		MaxWeight: WeightTabSwitching,
	}
}

// idleFactor penalizes sustained absence. A locked workstation is a flat
// half-weight penalty; idle time only counts once it exceeds five continuous
// minutes, at two points per minute up to the weight cap.
//
// The idle start comes from session state; the window is consulted only to
// recover a start time when session state has none (e.g. the daemon started
// mid-idle and the transition event is still retained).
func idleFactor(w *window.Window, idle IdleStatus, now time.Time) types.FactorResult {
	switch idle.State {
	case types.IdleStateLocked:
		return types.FactorResult{
			Penalty:   10,
			Detail:    string(types.IdleStateLocked),
			MaxWeight: WeightIdle,
		}

	case types.IdleStateIdle:
		since := idle.Since
		if since.IsZero() {
			since = findIdleStart(w, now)
		}
		if since.IsZero() {
			return types.FactorResult{Detail: string(types.IdleStateIdle), MaxWeight: WeightIdle}
		}

		idleMinutes := now.Sub(since).Minutes()
		var penalty float64
		if idleMinutes > minIdleMinutes {
			penalty = min(idleMinutes*2, WeightIdle)
		}
		return types.FactorResult{
			Penalty:   penalty,
			RawMetric: idleMinutes,
			Detail:    string(types.IdleStateIdle),
			MaxWeight: WeightIdle,
		}
	}

	return types.FactorResult{Detail: string(types.IdleStateActive), MaxWeight: WeightIdle}
}

// findIdleStart scans the recent window for the latest transition to idle.
func findIdleStart(w *window.Window, now time.Time) time.Time {
	var start time.Time
	for e := range w.Query(func(e types.ActivityEvent) bool {
		return e.Type == types.EventIdleChange && e.Payload.IdleState == types.IdleStateIdle
	}, now.Add(-metricsSpan)) {
		start = e.Timestamp
	}
	return start
}

// lateNightFactor penalizes usage deep into the night: full weight from
// 23:00 through 04:59, a reduced penalty in the 22:00 and 05:00 shoulder
// hours.
func lateNightFactor(now time.Time) types.FactorResult {
	hour := now.Hour()
	var penalty float64
	switch {
	case hour == 23 || hour <= 4:
		penalty = WeightLateNight
	case hour == 22 || hour == 5:
		penalty = 8
	}
	return types.FactorResult{
		Penalty:   penalty,
		RawMetric: float64(hour),
		MaxWeight: WeightLateNight,
	}
}

// mouseFactor detects erratic pointer motion over the last two minutes.
// Direction changes are summed across samples; speed is the sample mean.
func mouseFactor(w *window.Window, now time.Time) types.FactorResult {
	since := now.Add(-activitySpan)

	var changes int
	var speedSum float64
	var samples int
	for e := range w.Query(func(e types.ActivityEvent) bool {
		return e.Type == types.EventMouseActivity
	}, since) {
		changes += e.Payload.DirectionChanges
		speedSum += e.Payload.AvgSpeedPxSec
		samples++
	}

	var avgSpeed float64
	if samples > 0 {
		avgSpeed = speedSum / float64(samples)
	}

	var penalty float64
	switch {
	case changes > 20 && avgSpeed > 500:
		penalty = WeightErraticMouse
	case changes > 10 || avgSpeed > 300:
		penalty = 8
	case changes > 5:
		penalty = 3
	}

	return types.FactorResult{
		Penalty:   penalty,
		RawMetric: float64(changes),
		MaxWeight: WeightErraticMouse,
	}
}

// scrollFactor penalizes rapid (anxious) scrolling bursts over the last two
// minutes at two points per burst up to the weight cap.
func scrollFactor(w *window.Window, now time.Time) types.FactorResult {
	since := now.Add(-activitySpan)

	var rapid int
	for e := range w.Query(func(e types.ActivityEvent) bool {
		return e.Type == types.EventScrollActivity
	}, since) {
		rapid += e.Payload.RapidScrolls
	}

	return types.FactorResult{
		Penalty:   min(2*float64(rapid), WeightRapidScroll),
		RawMetric: float64(rapid),
		MaxWeight: WeightRapidScroll,
	}
}

// offHoursFactor penalizes weekday usage outside normal working hours.
// Weekends never incur this penalty.
func offHoursFactor(now time.Time) types.FactorResult {
	wd := now.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return types.FactorResult{RawMetric: float64(now.Hour()), MaxWeight: WeightOffHours}
	}

	hour := now.Hour()
	var penalty float64
	switch {
	case hour < 7 || hour > 21:
		penalty = WeightOffHours
	case hour < 8 || hour > 20:
		penalty = 5
	}
	return types.FactorResult{
		Penalty:   penalty,
		RawMetric: float64(hour),
		MaxWeight: WeightOffHours,
	}
}

// typingFactor derives a fatigue signal from the most recent typing_metrics
// sample within the last five minutes: high error rates, especially combined
// with fast typing, suggest degraded motor control. Advisory only.
func typingFactor(w *window.Window, now time.Time) types.FactorResult {
	since := now.Add(-metricsSpan)

	var latest *types.ActivityEvent
	for e := range w.Query(func(e types.ActivityEvent) bool {
		return e.Type == types.EventTypingMetrics
	}, since) {
		ev := e
		latest = &ev
	}
	if latest == nil {
		return types.FactorResult{MaxWeight: CapTypingFatigue}
	}

	errRate := latest.Payload.ErrorRate
	kpm := latest.Payload.KeysPerMinute

	var penalty float64
	switch {
	case errRate > 0.25 && kpm > 100:
		penalty = CapTypingFatigue
	case errRate > 0.15:
		penalty = 10
	case errRate > 0.08:
		penalty = 5
	}

	return types.FactorResult{
		Penalty:   penalty,
		RawMetric: errRate,
		MaxWeight: CapTypingFatigue,
	}
}

// clickFactor derives a precision signal from click accuracy samples over the
// last five minutes. Fewer than five clicks is treated as no signal to keep
// single misclicks from spiking the factor. Advisory only.
func clickFactor(w *window.Window, now time.Time) types.FactorResult {
	since := now.Add(-metricsSpan)

	var clicks, misclicks int
	for e := range w.Query(func(e types.ActivityEvent) bool {
		return e.Type == types.EventClickAccuracy
	}, since) {
		clicks += e.Payload.Clicks
		misclicks += e.Payload.Misclicks
	}
	if clicks < 5 {
		return types.FactorResult{MaxWeight: CapClickAccuracy}
	}

	missRate := float64(misclicks) / float64(clicks)
	var penalty float64
	switch {
	case missRate > 0.3:
		penalty = CapClickAccuracy
	case missRate > 0.2:
		penalty = 8
	case missRate > 0.1:
		penalty = 4
	}

	return types.FactorResult{
		Penalty:   penalty,
		RawMetric: missRate,
		MaxWeight: CapClickAccuracy,
	}
}

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
