package store

import (
	"context"
	"encoding/json"
	"time"

	"focusd/internal/types"
)

// HistoryRepository is the PostgreSQL implementation of types.HistoryStore.
// Factor breakdowns are stored as JSONB: they are read back whole for the
// dashboard, never filtered by individual factor, so relational columns
// would buy nothing.
type HistoryRepository struct {
	db DBTX
}

// NewHistoryRepository creates a HistoryRepository backed by the given
// database connection (pool or transaction).
func NewHistoryRepository(db DBTX) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// AppendEvent stores one activity event.
func (r *HistoryRepository) AppendEvent(ctx context.Context, e types.ActivityEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to encode event payload", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO activity_events (event_type, ts, payload)
		 VALUES ($1, $2, $3)`,
		e.Type, e.Timestamp, payload)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert activity event", err)
	}
	return nil
}

// AppendScore stores one score snapshot.
func (r *HistoryRepository) AppendScore(ctx context.Context, s types.ScoreSnapshot) error {
	factors, err := json.Marshal(s.Factors)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to encode factors", err)
	}
	advisory, err := json.Marshal(s.Advisory)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to encode advisory factors", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO score_snapshots (ts, score, factors, advisory)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (ts) DO NOTHING`,
		s.Timestamp, s.Score, factors, advisory)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert score snapshot", err)
	}
	return nil
}

// AppendIntervention stores a fired intervention. The write is an upsert
// keyed on ID so the later response update reuses the same path; the
// write-behind queue may also replay a record after a failed flush, which
// must stay idempotent.
func (r *HistoryRepository) AppendIntervention(ctx context.Context, rec types.InterventionRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO interventions (id, intervention_type, score, action, ts)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		 ON CONFLICT (id) DO UPDATE SET action = EXCLUDED.action`,
		rec.ID, rec.Type, rec.Score, string(rec.Action), rec.Timestamp)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert intervention", err)
	}
	return nil
}

// ScoresSince returns snapshots with ts >= since, ascending.
func (r *HistoryRepository) ScoresSince(ctx context.Context, since time.Time) ([]types.ScoreSnapshot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT ts, score, factors, advisory
		 FROM score_snapshots
		 WHERE ts >= $1
		 ORDER BY ts ASC`, since)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query score snapshots", err)
	}
	defer rows.Close()
	return scanScores(rows)
}

// LastScores returns the most recent n snapshots, ascending.
func (r *HistoryRepository) LastScores(ctx context.Context, n int) ([]types.ScoreSnapshot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT ts, score, factors, advisory FROM (
		   SELECT ts, score, factors, advisory
		   FROM score_snapshots
		   ORDER BY ts DESC
		   LIMIT $1
		 ) recent ORDER BY ts ASC`, n)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query recent snapshots", err)
	}
	defer rows.Close()
	return scanScores(rows)
}

// InterventionsSince returns interventions with ts >= since, ascending.
func (r *HistoryRepository) InterventionsSince(ctx context.Context, since time.Time) ([]types.InterventionRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, intervention_type, score, COALESCE(action, ''), ts
		 FROM interventions
		 WHERE ts >= $1
		 ORDER BY ts ASC`, since)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query interventions", err)
	}
	defer rows.Close()

	var out []types.InterventionRecord
	for rows.Next() {
		var rec types.InterventionRecord
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Score, &rec.Action, &rec.Timestamp); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan intervention row", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating intervention rows", err)
	}
	return out, nil
}

// PurgeOlderThan deletes events, snapshots and interventions older than the
// retention window and returns the total rows removed.
func (r *HistoryRepository) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	var total int64
	for _, table := range []string{"activity_events", "score_snapshots", "interventions"} {
		tag, err := r.db.Exec(ctx, `DELETE FROM `+table+` WHERE ts < $1`, cutoff)
		if err != nil {
			return total, types.NewAppError(types.ErrCodeInternalDB, "failed to purge "+table, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

// UpsertDailySummary writes one day's aggregate, replacing any existing row.
func (r *HistoryRepository) UpsertDailySummary(ctx context.Context, s types.DailySummary) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO daily_summaries (day, avg_score, min_score, max_score, intervention_count, active_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (day) DO UPDATE SET
		   avg_score = EXCLUDED.avg_score,
		   min_score = EXCLUDED.min_score,
		   max_score = EXCLUDED.max_score,
		   intervention_count = EXCLUDED.intervention_count,
		   active_minutes = EXCLUDED.active_minutes`,
		s.Date, s.AvgScore, s.MinScore, s.MaxScore, s.InterventionCount, s.ActiveMinutes)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert daily summary", err)
	}
	return nil
}

// DailySummaries returns the last n days of summaries, ascending by day.
func (r *HistoryRepository) DailySummaries(ctx context.Context, days int) ([]types.DailySummary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT day, avg_score, min_score, max_score, intervention_count, active_minutes
		 FROM daily_summaries
		 ORDER BY day DESC
		 LIMIT $1`, days)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query daily summaries", err)
	}
	defer rows.Close()

	var out []types.DailySummary
	for rows.Next() {
		var s types.DailySummary
		if err := rows.Scan(&s.Date, &s.AvgScore, &s.MinScore, &s.MaxScore, &s.InterventionCount, &s.ActiveMinutes); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan daily summary row", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating daily summary rows", err)
	}

	// Reverse to ascending.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanScores(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]types.ScoreSnapshot, error) {
	var out []types.ScoreSnapshot
	for rows.Next() {
		var s types.ScoreSnapshot
		var factors, advisory []byte
		if err := rows.Scan(&s.Timestamp, &s.Score, &factors, &advisory); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan snapshot row", err)
		}
		if err := json.Unmarshal(factors, &s.Factors); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode factors", err)
		}
		if len(advisory) > 0 {
			if err := json.Unmarshal(advisory, &s.Advisory); err != nil {
				return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode advisory factors", err)
			}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating snapshot rows", err)
	}
	return out, nil
}
