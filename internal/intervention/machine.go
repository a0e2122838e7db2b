// Package intervention implements the sustained-low-score state machine that
// gates advisory interventions. The machine observes the score stream and
// fires at most one intervention per sustained low-score episode, rate
// limited by a cooldown.
//
// States:
//
//	Nominal          — score at or above the mild threshold
//	BelowThreshold   — score below the mild threshold, sustain timer running
//
// Cooldown is implicit: it is tracked via the last fire time rather than a
// distinct state, so recovery transitions are never blocked by it.
package intervention

import (
	"time"

	"github.com/google/uuid"

	"focusd/internal/config"
	"focusd/internal/types"
)

// Machine is the intervention state machine. It is single-owner state,
// mutated only by the session engine's serialized loop.
type Machine struct {
	thresholds config.Thresholds

	belowSince   time.Time // zero when Nominal
	lastFireTime time.Time
}

// New creates a Machine with the given thresholds.
func New(th config.Thresholds) *Machine {
	return &Machine{thresholds: th}
}

// SetThresholds replaces the tunables (hot-reload). In-flight sustain
// tracking is preserved; the new values apply from the next observation.
func (m *Machine) SetThresholds(th config.Thresholds) {
	m.thresholds = th
}

// Observe feeds one score observation into the machine and returns a fired
// intervention record, or nil.
//
// Transitions:
//   - score >= mild threshold: immediate reset to Nominal. Recovery is
//     instantaneous even mid-cooldown; there is no separate recovery
//     hysteresis band. A rapid oscillation around the threshold therefore
//     restarts the sustain timer from zero on every dip — the cooldown still
//     bounds firing to once per window, so the worst case is a delayed
//     intervention, never a duplicated one.
//   - score < mild threshold while Nominal: enter BelowThreshold(now).
//   - while BelowThreshold: once the score has been continuously low for the
//     sustain duration and the cooldown since the last fire has elapsed, fire
//     (urgent when score < urgent threshold), record the fire time, and reset
//     to Nominal.
func (m *Machine) Observe(score float64, now time.Time) *types.InterventionRecord {
	if score >= m.thresholds.MildScore {
		m.belowSince = time.Time{}
		return nil
	}

	if m.belowSince.IsZero() {
		m.belowSince = now
		return nil
	}

	if now.Sub(m.belowSince) < m.thresholds.SustainDuration {
		return nil
	}
	if !m.lastFireTime.IsZero() && now.Sub(m.lastFireTime) <= m.thresholds.Cooldown {
		return nil
	}

	m.lastFireTime = now
	m.belowSince = time.Time{}

	kind := types.InterventionMild
	if score < m.thresholds.UrgentScore {
		kind = types.InterventionUrgent
	}
	return &types.InterventionRecord{
		ID:        uuid.New().String(),
		Type:      kind,
		Score:     score,
		Timestamp: now,
	}
}

// Below reports whether the machine is currently tracking a low-score
// episode, and since when.
func (m *Machine) Below() (bool, time.Time) {
	return !m.belowSince.IsZero(), m.belowSince
}

// LastFire returns when the machine last fired, or the zero time.
func (m *Machine) LastFire() time.Time { return m.lastFireTime }
