// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigErrorType categorizes configuration loading failures to aid
// debugging.
type ConfigErrorType string

const (
	// ErrParsing indicates a failure when parsing environment variable
	// values into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrValidation indicates the configuration failed struct validation
	// rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrOverride indicates the thresholds override file could not be read
	// or parsed.
	ErrOverride ConfigErrorType = "OVERRIDE_FAILED"
)

// ConfigError is a diagnostic error type returned by Load to aid debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load loads and validates the focusd configuration from the environment,
// after loading an optional .env file. It never reads the thresholds
// override file; see LoadThresholds.
func Load() (*Config, error) {
	// Step 1: Enforce UTC to prevent drift bugs between the event window,
	// scoring ticks and persisted timestamps.
	time.Local = time.UTC

	// Step 2: Load .env if present. godotenv does NOT override variables
	// already set in the environment.
	_ = godotenv.Load()

	// Step 3: Populate from envconfig tags.
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "processing environment", Err: err}
	}

	// Step 4: Validate.
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "validating configuration", Err: err}
	}

	return &cfg, nil
}

// thresholdsFile is the JSON shape of the override file. Durations are
// expressed as Go duration strings ("45s", "10m").
type thresholdsFile struct {
	MildScore       *float64 `json:"mild_score"`
	UrgentScore     *float64 `json:"urgent_score"`
	SustainDuration *string  `json:"sustain_duration"`
	Cooldown        *string  `json:"cooldown"`
}

// LoadThresholds reads the override file at path and merges it over the
// defaults. Fields absent from the file keep their default values. An empty
// path returns the defaults unchanged.
func LoadThresholds(path string) (Thresholds, error) {
	th := DefaultThresholds()
	if path == "" {
		return th, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return th, &ConfigError{Type: ErrOverride, Message: "reading thresholds file", Err: err}
	}

	var f thresholdsFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return th, &ConfigError{Type: ErrOverride, Message: "parsing thresholds file", Err: err}
	}

	if f.MildScore != nil {
		th.MildScore = *f.MildScore
	}
	if f.UrgentScore != nil {
		th.UrgentScore = *f.UrgentScore
	}
	if f.SustainDuration != nil {
		d, err := time.ParseDuration(*f.SustainDuration)
		if err != nil {
			return th, &ConfigError{Type: ErrOverride, Message: "parsing sustain_duration", Err: err}
		}
		th.SustainDuration = d
	}
	if f.Cooldown != nil {
		d, err := time.ParseDuration(*f.Cooldown)
		if err != nil {
			return th, &ConfigError{Type: ErrOverride, Message: "parsing cooldown", Err: err}
		}
		th.Cooldown = d
	}

	if th.UrgentScore > th.MildScore {
		return th, &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("urgent_score (%.0f) must not exceed mild_score (%.0f)", th.UrgentScore, th.MildScore),
		}
	}

	return th, nil
}
