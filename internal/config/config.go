// Package config defines the configuration for the focusd daemon.
// Configuration is loaded once at process initialization and is immutable
// thereafter, with the exception of Thresholds, which may be hot-reloaded
// from an override file.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Struct Defaults (Lowest)
//
// Any missing required value or invalid format causes the application to
// fail immediately on startup.
package config

import (
	"time"
)

// Config is the top-level configuration for focusd. It is populated once
// during process initialization. Sub-components receive only the specific
// config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server    ServerConfig
	Database  DatabaseConfig
	Session   SessionConfig
	Forecast  ForecastConfig
	Notify    NotifyConfig
	Retention RetentionConfig

	// ThresholdsPath optionally points to a JSON file of Thresholds
	// overrides, watched for changes at runtime.
	ThresholdsPath string `envconfig:"THRESHOLDS_PATH"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `envconfig:"LISTEN_ADDR" default:"127.0.0.1:7430"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"5s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL               string        `envconfig:"DATABASE_URL" validate:"required,url"`
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"4"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// SessionConfig holds the session engine's timing parameters.
type SessionConfig struct {
	TickInterval  time.Duration `envconfig:"SCORE_TICK_INTERVAL" default:"30s"`
	FlushInterval time.Duration `envconfig:"PERSIST_FLUSH_INTERVAL" default:"15s"`
	WindowSpan    time.Duration `envconfig:"EVENT_WINDOW_SPAN" default:"10m"`
	IngestBuffer  int           `envconfig:"INGEST_BUFFER" default:"256"`
}

// ForecastConfig holds Forecasting Engine tunables.
type ForecastConfig struct {
	HorizonMinutes   int           `envconfig:"FORECAST_HORIZON_MINUTES" default:"30"`
	MinTrainSamples  int           `envconfig:"FORECAST_MIN_TRAIN_SAMPLES" default:"200"`
	RetrainAfterDays int           `envconfig:"FORECAST_RETRAIN_DAYS" default:"7"`
	RetrainAfterNew  int           `envconfig:"FORECAST_RETRAIN_NEW_SNAPSHOTS" default:"500"`
	RequestTimeout   time.Duration `envconfig:"FORECAST_REQUEST_TIMEOUT" default:"10s"`
	ModelName        string        `envconfig:"FORECAST_MODEL_NAME" default:"attention-v1"`
}

// NotifyConfig holds UI collaborator delivery settings.
type NotifyConfig struct {
	// WebhookURL optionally mirrors interventions and alerts to an external
	// endpoint (e.g. a desktop overlay helper). Empty disables the channel.
	WebhookURL     string        `envconfig:"NOTIFY_WEBHOOK_URL" validate:"omitempty,url"`
	WebhookSecret  string        `envconfig:"NOTIFY_WEBHOOK_SECRET"`
	WebhookTimeout time.Duration `envconfig:"NOTIFY_WEBHOOK_TIMEOUT" default:"5s"`
	UserAgent      string        `envconfig:"NOTIFY_USER_AGENT" default:"focusd-notify/1.0"`
}

// RetentionConfig holds data retention windows.
type RetentionConfig struct {
	HistoryDays  int `envconfig:"RETENTION_HISTORY_DAYS" default:"30"`
	TrainingDays int `envconfig:"RETENTION_TRAINING_DAYS" default:"7"`
}

// Thresholds groups the scoring/alerting tunables that may be overridden at
// runtime via the watched override file. The zero value is never used;
// DefaultThresholds provides the canonical values.
type Thresholds struct {
	// Intervention state machine.
	MildScore       float64       `json:"mild_score"`
	UrgentScore     float64       `json:"urgent_score"`
	SustainDuration time.Duration `json:"sustain_duration"`
	Cooldown        time.Duration `json:"cooldown"`
}

// DefaultThresholds returns the canonical intervention tunables.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MildScore:       40,
		UrgentScore:     20,
		SustainDuration: 30 * time.Second,
		Cooldown:        5 * time.Minute,
	}
}
