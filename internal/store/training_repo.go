package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"focusd/internal/types"
)

// TrainingRepository is the PostgreSQL implementation of types.TrainingStore:
// training snapshots for the forecasting engine plus versioned model
// artifacts keyed by name.
type TrainingRepository struct {
	db DBTX
}

// NewTrainingRepository creates a TrainingRepository backed by the given
// database connection (pool or transaction).
func NewTrainingRepository(db DBTX) *TrainingRepository {
	return &TrainingRepository{db: db}
}

// StoreSnapshot persists one training snapshot.
func (r *TrainingRepository) StoreSnapshot(ctx context.Context, s types.TrainingSnapshot) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO training_snapshots (ts, behavioral, physiological, exhaustion_score)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (ts) DO NOTHING`,
		s.Timestamp, s.BehavioralFeatures, s.PhysiologicalFeatures, s.ExhaustionScore)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert training snapshot", err)
	}
	return nil
}

// SnapshotsSince returns snapshots with ts >= since, ascending.
func (r *TrainingRepository) SnapshotsSince(ctx context.Context, since time.Time) ([]types.TrainingSnapshot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT ts, behavioral, physiological, exhaustion_score
		 FROM training_snapshots
		 WHERE ts >= $1
		 ORDER BY ts ASC`, since)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query training snapshots", err)
	}
	defer rows.Close()

	var out []types.TrainingSnapshot
	for rows.Next() {
		var s types.TrainingSnapshot
		if err := rows.Scan(&s.Timestamp, &s.BehavioralFeatures, &s.PhysiologicalFeatures, &s.ExhaustionScore); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan training snapshot row", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating training snapshot rows", err)
	}
	return out, nil
}

// CountSince counts snapshots with ts >= since.
func (r *TrainingRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM training_snapshots WHERE ts >= $1`, since).Scan(&n)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count training snapshots", err)
	}
	return n, nil
}

// PurgeOlderThan deletes snapshots older than the retention window.
func (r *TrainingRepository) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM training_snapshots WHERE ts < $1`,
		time.Now().UTC().AddDate(0, 0, -days))
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to purge training snapshots", err)
	}
	return tag.RowsAffected(), nil
}

// SaveModel stores a serialized model artifact under the given name,
// replacing any previous version.
func (r *TrainingRepository) SaveModel(ctx context.Context, name string, artifact []byte, trainedAt time.Time, samples int) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO model_artifacts (name, artifact, trained_at, samples)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET
		   artifact = EXCLUDED.artifact,
		   trained_at = EXCLUDED.trained_at,
		   samples = EXCLUDED.samples`,
		name, artifact, trainedAt, samples)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save model artifact", err)
	}
	return nil
}

// LoadModel retrieves the artifact stored under name. A missing artifact is
// reported as not_found_model so callers can distinguish first-launch from a
// database failure.
func (r *TrainingRepository) LoadModel(ctx context.Context, name string) ([]byte, time.Time, int, error) {
	var artifact []byte
	var trainedAt time.Time
	var samples int
	err := r.db.QueryRow(ctx,
		`SELECT artifact, trained_at, samples FROM model_artifacts WHERE name = $1`,
		name).Scan(&artifact, &trainedAt, &samples)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, 0, types.NewAppError(types.ErrCodeNotFoundModel, "no model artifact named "+name, err)
	}
	if err != nil {
		return nil, time.Time{}, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to load model artifact", err)
	}
	return artifact, trainedAt, samples, nil
}
