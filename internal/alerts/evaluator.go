package alerts

import (
	"time"

	"github.com/google/uuid"

	"focusd/internal/types"
)

// Evaluator applies the rule catalog to score snapshots with per-key
// cooldown gating and an active queue bounded at MaxActive entries.
//
// The evaluator is single-owner state, mutated only by the session engine's
// serialized loop (evaluation runs synchronously after each snapshot).
type Evaluator struct {
	rules []Rule

	// lastFired tracks the most recent fire time per trigger key. A key
	// fires at most once per its rule's cooldown interval.
	lastFired map[types.TriggerKey]time.Time

	// active is the unconsumed alert queue, newest first.
	active []types.Alert
}

// NewEvaluator creates an Evaluator over the given rules. A nil rule set
// uses the full catalog.
func NewEvaluator(rules []Rule) *Evaluator {
	if rules == nil {
		rules = Catalog()
	}
	return &Evaluator{
		rules:     rules,
		lastFired: make(map[types.TriggerKey]time.Time),
	}
}

// Evaluate runs every rule against the snapshot and returns the alerts that
// fired. A candidate is suppressed when its key's cooldown has not elapsed
// or an alert with the same key is still queued. Fired alerts are prepended
// to the active queue; entries pushed past MaxActive are dropped.
func (e *Evaluator) Evaluate(s types.ScoreSnapshot, now time.Time) []types.Alert {
	var fired []types.Alert

	for _, r := range e.rules {
		if !r.Condition(s) {
			continue
		}
		key := r.Definition.TriggerKey

		if last, ok := e.lastFired[key]; ok && now.Sub(last) < r.Cooldown {
			continue
		}
		if e.queued(key) {
			continue
		}

		a := types.Alert{
			ID:              uuid.New().String(),
			FiredAt:         now,
			AlertDefinition: r.Definition,
		}
		e.lastFired[key] = now
		e.push(a)
		fired = append(fired, a)
	}

	return fired
}

// Active returns the unconsumed alerts, newest first.
func (e *Evaluator) Active() []types.Alert {
	out := make([]types.Alert, len(e.active))
	copy(out, e.active)
	return out
}

// Consume removes and returns the alert with the given ID, or nil if it is
// not queued. The UI collaborator calls this when it displays an alert.
func (e *Evaluator) Consume(id string) *types.Alert {
	for i, a := range e.active {
		if a.ID == id {
			e.active = append(e.active[:i], e.active[i+1:]...)
			return &a
		}
	}
	return nil
}

// queued reports whether an alert with the given key is still unconsumed.
func (e *Evaluator) queued(key types.TriggerKey) bool {
	for _, a := range e.active {
		if a.TriggerKey == key {
			return true
		}
	}
	return false
}

// push prepends a to the active queue, dropping the oldest entry beyond
// MaxActive.
func (e *Evaluator) push(a types.Alert) {
	e.active = append([]types.Alert{a}, e.active...)
	if len(e.active) > MaxActive {
		e.active = e.active[:MaxActive]
	}
}
