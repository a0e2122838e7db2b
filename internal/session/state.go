// Package session implements the session engine: the single goroutine that
// owns the event window, scoring state, intervention machine and alert
// evaluator. All mutation flows through its run loop, so none of the owned
// components need locking.
package session

import (
	"time"

	"focusd/internal/scoring"
	"focusd/internal/types"
)

// In-memory retention caps. Recent snapshots back the forecast feature
// window and the dashboard sparkline between store reads; two hours at the
// default 30s tick.
const (
	maxRecentScores        = 240
	maxRecentInterventions = 20
)

// State is the session engine's consolidated mutable state: everything about
// the current session that scoring and the dashboard need but the event
// window does not carry. Owned exclusively by the engine loop.
type State struct {
	start time.Time

	idle scoring.IdleStatus

	// Session totals.
	tabSwitches int
	activeTime  time.Duration
	idleTime    time.Duration

	latest        types.ScoreSnapshot
	recentScores  []types.ScoreSnapshot
	interventions []types.InterventionRecord
}

// newState creates session state anchored at now, starting active.
func newState(now time.Time) *State {
	return &State{
		start: now,
		idle:  scoring.IdleStatus{State: types.IdleStateActive, Since: now},
	}
}

// applyEvent folds one event into the session totals and idle tracking.
func (s *State) applyEvent(e types.ActivityEvent) {
	switch e.Type {
	case types.EventTabSwitch:
		s.tabSwitches++
	case types.EventIdleChange:
		if e.Payload.IdleState != s.idle.State {
			s.idle = scoring.IdleStatus{State: e.Payload.IdleState, Since: e.Timestamp}
		}
	}
}

// applyTick accrues active/idle time for one tick interval and records the
// snapshot as current.
func (s *State) applyTick(snap types.ScoreSnapshot, interval time.Duration) {
	if s.idle.State == types.IdleStateActive {
		s.activeTime += interval
	} else {
		s.idleTime += interval
	}

	s.latest = snap
	s.recentScores = append(s.recentScores, snap)
	if len(s.recentScores) > maxRecentScores {
		s.recentScores = s.recentScores[len(s.recentScores)-maxRecentScores:]
	}
}

// recordIntervention appends a fired intervention to the in-memory tail.
func (s *State) recordIntervention(r types.InterventionRecord) {
	s.interventions = append(s.interventions, r)
	if len(s.interventions) > maxRecentInterventions {
		s.interventions = s.interventions[len(s.interventions)-maxRecentInterventions:]
	}
}

// respond sets the user's response on a recorded intervention and returns
// the updated record, or nil when the ID is unknown.
func (s *State) respond(id string, action types.ResponseAction) *types.InterventionRecord {
	for i := range s.interventions {
		if s.interventions[i].ID == id {
			s.interventions[i].Action = action
			r := s.interventions[i]
			return &r
		}
	}
	return nil
}

// report builds the compact score payload from current state.
func (s *State) report(now time.Time) types.ScoreReport {
	return types.ScoreReport{
		Score:           s.latest.Score,
		Factors:         s.latest.Factors,
		SessionDuration: now.Sub(s.start),
		IdleState:       s.idle.State,
	}
}

// Snapshot is a read-only copy of session state handed to the dashboard
// builder outside the engine loop.
type Snapshot struct {
	Start           time.Time
	IdleState       types.IdleState
	TabSwitches     int
	ActiveTime      time.Duration
	IdleTime        time.Duration
	Latest          types.ScoreSnapshot
	RecentScores    []types.ScoreSnapshot
	Interventions   []types.InterventionRecord
	SessionDuration time.Duration
}

// snapshot deep-copies the slices so the caller can read them after the
// loop moves on.
func (s *State) snapshot(now time.Time) Snapshot {
	scores := make([]types.ScoreSnapshot, len(s.recentScores))
	copy(scores, s.recentScores)
	ivs := make([]types.InterventionRecord, len(s.interventions))
	copy(ivs, s.interventions)

	return Snapshot{
		Start:           s.start,
		IdleState:       s.idle.State,
		TabSwitches:     s.tabSwitches,
		ActiveTime:      s.activeTime,
		IdleTime:        s.idleTime,
		Latest:          s.latest,
		RecentScores:    scores,
		Interventions:   ivs,
		SessionDuration: now.Sub(s.start),
	}
}
