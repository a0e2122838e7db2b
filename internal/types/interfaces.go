package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// HistoryStore is the durable storage collaborator for events, snapshots,
// interventions and daily summaries. Writers only append; readers take
// read-only snapshots, so no transactional isolation is required.
type HistoryStore interface {
	AppendEvent(ctx context.Context, e ActivityEvent) error
	AppendScore(ctx context.Context, s ScoreSnapshot) error
	AppendIntervention(ctx context.Context, r InterventionRecord) error

	// ScoresSince returns snapshots with timestamp >= since, ascending.
	ScoresSince(ctx context.Context, since time.Time) ([]ScoreSnapshot, error)
	// LastScores returns the most recent n snapshots, ascending.
	LastScores(ctx context.Context, n int) ([]ScoreSnapshot, error)
	// InterventionsSince returns interventions with timestamp >= since,
	// ascending.
	InterventionsSince(ctx context.Context, since time.Time) ([]InterventionRecord, error)

	PurgeOlderThan(ctx context.Context, days int) (int64, error)
	UpsertDailySummary(ctx context.Context, s DailySummary) error
	DailySummaries(ctx context.Context, days int) ([]DailySummary, error)
}

// TrainingStore persists TrainingSnapshots and model artifacts for the
// Forecasting Engine.
type TrainingStore interface {
	StoreSnapshot(ctx context.Context, s TrainingSnapshot) error
	SnapshotsSince(ctx context.Context, since time.Time) ([]TrainingSnapshot, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	PurgeOlderThan(ctx context.Context, days int) (int64, error)

	SaveModel(ctx context.Context, name string, artifact []byte, trainedAt time.Time, samples int) error
	LoadModel(ctx context.Context, name string) (artifact []byte, trainedAt time.Time, samples int, err error)
}

// ForecastProvider is the Forecasting Engine collaborator interface consumed
// by the API layer and the session engine.
type ForecastProvider interface {
	Predict(ctx context.Context, history []ScoreSnapshot) (PredictionResult, error)
	GenerateInsight(ctx context.Context, history []ScoreSnapshot) (Insight, error)
	StoreSnapshot(ctx context.Context, s TrainingSnapshot) error
	TrainModel(ctx context.Context) (TrainingResult, error)
	Status(ctx context.Context) (ForecastStatus, error)
}

// Notifier delivers fire-and-forget advisory notifications to the UI
// collaborator. Implementations must never block the caller on delivery
// failure; a failed notification is logged and dropped.
type Notifier interface {
	NotifyIntervention(ctx context.Context, n InterventionNotice)
	NotifyAlert(ctx context.Context, a Alert)
	NotifyScore(ctx context.Context, s ScoreSnapshot)
}

// EventSource abstracts the host-runtime sensor hooks. The core only
// consumes typed events; it has no dependency on any specific host API.
type EventSource interface {
	// Events returns the channel on which the source delivers events. The
	// channel is closed when the source shuts down.
	Events() <-chan ActivityEvent
}
