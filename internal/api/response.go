package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"focusd/internal/types"
)

// maxRequestBodySize is the maximum allowed size of a request body (64 KB).
// Telemetry payloads are small; anything larger is malformed or hostile.
const maxRequestBodySize = 64 << 10

// APIResponse is the standard envelope for all successful API responses.
type APIResponse struct {
	Data any `json:"data,omitempty"`
}

// APIErrorResponse is the standard envelope for all error API responses.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned to clients.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON writes a JSON response with the given status code and data.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fallback := APIErrorResponse{
			Error: ErrorDetail{
				Code:      string(types.ErrCodeInternalUnexpected),
				Message:   "failed to marshal response",
				RequestID: types.GetRequestID(r.Context()),
			},
		}
		// Best-effort write; if this also fails, there is nothing more to do.
		_ = json.NewEncoder(w).Encode(fallback)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes an error response to the client. If the error chain contains
// a *types.AppError its code drives the HTTP status; generic errors become a
// 500 without leaking internal details.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	requestID := types.GetRequestID(r.Context())

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		JSON(w, r, appErr.HTTPStatus(), APIErrorResponse{
			Error: ErrorDetail{
				Code:      string(appErr.Code),
				Message:   appErr.Message,
				Details:   appErr.Details,
				RequestID: requestID,
			},
		})
		return
	}

	JSON(w, r, http.StatusInternalServerError, APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "an unexpected error occurred",
			RequestID: requestID,
		},
	})
}

// DecodeJSON reads the request body into dst, enforcing the body size cap
// and rejecting unknown fields, trailing values and empty bodies.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidationPayload,
			"request body must contain a single JSON object", nil)
	}
	return nil
}

// mapDecodeError translates a json.Decoder error into a structured AppError.
func mapDecodeError(err error) *types.AppError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return types.NewAppError(types.ErrCodeValidationPayload,
			"request body too large", err)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return types.NewAppError(types.ErrCodeValidationPayload,
			"malformed JSON in request body", err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return types.NewAppError(types.ErrCodeValidationPayload,
			"invalid value for field "+typeErr.Field, err)
	}

	if strings.HasPrefix(err.Error(), "json: unknown field") {
		return types.NewAppError(types.ErrCodeValidationPayload,
			"unknown field in request body: "+strings.TrimPrefix(err.Error(), "json: unknown field "), err)
	}

	if errors.Is(err, io.EOF) {
		return types.NewAppError(types.ErrCodeValidationPayload,
			"request body must not be empty", err)
	}

	return types.NewAppError(types.ErrCodeValidationPayload,
		"invalid JSON in request body", err)
}
