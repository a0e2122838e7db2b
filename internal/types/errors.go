package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants. Handlers MUST use these constants instead
// of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationPayload      ErrorCode = "validation_invalid_payload"
	ErrCodeValidationTimestamp    ErrorCode = "validation_invalid_timestamp"
	ErrCodeValidationAction       ErrorCode = "validation_invalid_action"
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"

	// Not Found (404)
	ErrCodeNotFoundIntervention ErrorCode = "not_found_intervention"
	ErrCodeNotFoundAlert        ErrorCode = "not_found_alert"
	ErrCodeNotFoundModel        ErrorCode = "not_found_model"

	// Conflict (409)
	ErrCodeConflictTraining ErrorCode = "conflict_training_in_progress"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeInternalModel      ErrorCode = "internal_model_corruption"
	ErrCodeUpstreamWebhook    ErrorCode = "upstream_webhook_unavailable"

	// Shutdown (503)
	ErrCodeUnavailable ErrorCode = "service_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	case s == string(ErrCodeUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. All domain and handler
// errors should be expressed as AppError to enable consistent formatting,
// HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
