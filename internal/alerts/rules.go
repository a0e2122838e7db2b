// Package alerts implements the multi-rule advisory alert evaluator. Rules
// are a stateless classifier over the latest score snapshot; the evaluator
// adds per-key cooldown gating and a priority-bounded active queue consumed
// by the UI collaborator.
package alerts

import (
	"time"

	"focusd/internal/types"
)

// MaxActive caps the active alert queue. New alerts are prepended; when the
// queue is full the oldest entry is dropped, which counts as never having
// been queued rather than as a dismissal.
const MaxActive = 3

// Rule pairs a trigger condition with its presentation catalog entry and
// cooldown. Condition returns true when the rule matches the snapshot.
type Rule struct {
	Definition types.AlertDefinition
	Cooldown   time.Duration
	Condition  func(s types.ScoreSnapshot) bool
}

// Catalog returns the complete rule set in evaluation order. Each rule
// yields zero or one alert candidate per snapshot; score_danger and
// score_warning are mutually exclusive branches of the same check.
func Catalog() []Rule {
	return []Rule{
		{
			Definition: types.AlertDefinition{
				Severity:     types.SeverityDanger,
				TriggerKey:   types.TriggerScoreDanger,
				Title:        "Attention is critically low",
				Message:      "Your attention score has dropped below 35. Pushing through rarely works.",
				Suggestion:   "Step away for a few minutes — even a short walk resets focus.",
				CTALabel:     "Take a short walk",
				WellnessType: types.WellnessWalk,
			},
			Cooldown:  5 * time.Minute,
			Condition: func(s types.ScoreSnapshot) bool { return s.Score < 35 },
		},
		{
			Definition: types.AlertDefinition{
				Severity:     types.SeverityWarning,
				TriggerKey:   types.TriggerScoreWarning,
				Title:        "Attention is slipping",
				Message:      "Your attention score is trending low.",
				Suggestion:   "Consider wrapping up the current task before it drops further.",
				CTALabel:     "Take a micro-break",
				WellnessType: types.WellnessEyeRest,
			},
			Cooldown:  10 * time.Minute,
			Condition: func(s types.ScoreSnapshot) bool { return s.Score >= 35 && s.Score < 55 },
		},
		{
			Definition: types.AlertDefinition{
				Severity:     types.SeverityWarning,
				TriggerKey:   types.TriggerTabSwitching,
				Title:        "Heavy context switching",
				Message:      "You are bouncing between tabs faster than you can settle into any of them.",
				Suggestion:   "Close the tabs you are not using and pick one task.",
				CTALabel:     "Try single-tasking",
				WellnessType: types.WellnessBreathing,
			},
			Cooldown: 5 * time.Minute,
			Condition: func(s types.ScoreSnapshot) bool {
				f := s.Factor(types.FactorTabSwitching)
				return f.Penalty >= 15 || f.RawMetric >= 8
			},
		},
		{
			Definition: types.AlertDefinition{
				Severity:     types.SeverityWarning,
				TriggerKey:   types.TriggerErraticMouse,
				Title:        "Restless pointer",
				Message:      "Your pointer movement looks erratic — fast, jittery motion usually tracks frustration.",
				Suggestion:   "Drop your hand off the mouse and take three slow breaths.",
				CTALabel:     "Breathe for 30 seconds",
				WellnessType: types.WellnessBreathing,
			},
			Cooldown: 8 * time.Minute,
			Condition: func(s types.ScoreSnapshot) bool {
				return s.Factor(types.FactorErraticMouse).Penalty >= 7
			},
		},
		{
			Definition: types.AlertDefinition{
				Severity:     types.SeverityInfo,
				TriggerKey:   types.TriggerAnxiousScroll,
				Title:        "Doomscrolling detected",
				Message:      "Rapid scrolling bursts suggest you are skimming without absorbing.",
				Suggestion:   "Pause and ask what you are actually looking for.",
				CTALabel:     "Reset with a stretch",
				WellnessType: types.WellnessStretch,
			},
			Cooldown: 8 * time.Minute,
			Condition: func(s types.ScoreSnapshot) bool {
				return s.Factor(types.FactorRapidScroll).Penalty >= 4
			},
		},
		{
			Definition: types.AlertDefinition{
				Severity:     types.SeverityWarning,
				TriggerKey:   types.TriggerTypingFatigue,
				Title:        "Typing fatigue",
				Message:      "Your typing error rate is climbing — a reliable early fatigue signal.",
				Suggestion:   "Shake out your hands and slow your pace for a few minutes.",
				CTALabel:     "Rest your hands",
				WellnessType: types.WellnessStretch,
			},
			Cooldown: 10 * time.Minute,
			Condition: func(s types.ScoreSnapshot) bool {
				return s.Factor(types.FactorTypingFatigue).Penalty >= 12
			},
		},
		{
			Definition: types.AlertDefinition{
				Severity:     types.SeverityInfo,
				TriggerKey:   types.TriggerClickAccuracy,
				Title:        "Click accuracy dropping",
				Message:      "You are missing more click targets than usual.",
				Suggestion:   "Rest your eyes on something distant for twenty seconds.",
				CTALabel:     "Rest your eyes",
				WellnessType: types.WellnessEyeRest,
			},
			Cooldown: 10 * time.Minute,
			Condition: func(s types.ScoreSnapshot) bool {
				return s.Factor(types.FactorClickAccuracy).Penalty >= 10
			},
		},
		{
			Definition: types.AlertDefinition{
				Severity:     types.SeverityWarning,
				TriggerKey:   types.TriggerLateNight,
				Title:        "It's getting late",
				Message:      "Late-night sessions carry most of tomorrow's exhaustion.",
				Suggestion:   "Set a hard stop and start winding down.",
				CTALabel:     "Begin wind-down",
				WellnessType: types.WellnessWindDown,
			},
			Cooldown: 30 * time.Minute,
			Condition: func(s types.ScoreSnapshot) bool {
				return s.Factor(types.FactorLateNight).Penalty >= 8
			},
		},
	}
}
