package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"focusd/internal/forecast"
	"focusd/internal/session"
	"focusd/internal/types"
)

// futureSlack is how far ahead of the server clock an event timestamp may be
// before it is rejected. Sensor clocks are the same machine's clock, so
// anything beyond a small skew is a bug.
const futureSlack = time.Minute

// Handlers implements the v1 endpoint set.
type Handlers struct {
	engine     *session.Engine
	dashboard  *session.Dashboard
	forecaster types.ForecastProvider
	history    types.HistoryStore
	clock      types.Clock
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(engine *session.Engine, dashboard *session.Dashboard, forecaster types.ForecastProvider, history types.HistoryStore, clock types.Clock, logger *slog.Logger) *Handlers {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Handlers{
		engine:     engine,
		dashboard:  dashboard,
		forecaster: forecaster,
		history:    history,
		clock:      clock,
		validate:   validator.New(),
		logger:     logger,
	}
}

type eventRequest struct {
	Type      types.EventType    `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Payload   types.EventPayload `json:"payload"`
}

type ingestResponse struct {
	Accepted bool `json:"accepted"`
}

// IngestEvent accepts one telemetry event. Unknown event types are accepted
// and dropped silently (202): sensors ship ahead of the daemon and an old
// daemon must not make a new sensor error out. Malformed payloads are a 400.
func (h *Handlers) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if req.Type == "" {
		Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"event type is required", nil))
		return
	}
	if !req.Timestamp.IsZero() && req.Timestamp.After(h.clock.Now().Add(futureSlack)) {
		Error(w, r, types.NewAppError(types.ErrCodeValidationTimestamp,
			"event timestamp is in the future", nil))
		return
	}
	if err := h.validate.Struct(req.Payload); err != nil {
		Error(w, r, types.NewAppError(types.ErrCodeValidationPayload,
			"invalid event payload", err))
		return
	}

	if _, known := types.KnownEventTypes[req.Type]; !known {
		// Accepted but dropped; the window would drop it anyway, this just
		// skips the queue round trip.
		JSON(w, r, http.StatusAccepted, APIResponse{Data: ingestResponse{Accepted: false}})
		return
	}

	h.engine.Ingest(types.ActivityEvent{
		Type:      req.Type,
		Timestamp: req.Timestamp.UTC(),
		Payload:   req.Payload,
	})
	JSON(w, r, http.StatusAccepted, APIResponse{Data: ingestResponse{Accepted: true}})
}

// GetScore returns the current score and factor breakdown.
func (h *Handlers) GetScore(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Report(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: report})
}

// GetDashboard returns the aggregate dashboard payload.
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	data, err := h.dashboard.Build(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: data})
}

// GetAlerts returns the active alert queue, newest first.
func (h *Handlers) GetAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.engine.ActiveAlerts(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: alerts})
}

// ConsumeAlert removes an alert from the queue once the UI has shown it.
func (h *Handlers) ConsumeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := h.engine.ConsumeAlert(r.Context(), id)
	if err != nil {
		Error(w, r, err)
		return
	}
	if a == nil {
		Error(w, r, types.NewAppError(types.ErrCodeNotFoundAlert,
			"no active alert with id "+id, nil))
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: a})
}

type responseRequest struct {
	ID     string               `json:"id"`
	Action types.ResponseAction `json:"action"`
}

// InterventionResponse records the user's reaction to a fired intervention.
func (h *Handlers) InterventionResponse(w http.ResponseWriter, r *http.Request) {
	var req responseRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if req.ID == "" {
		Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"intervention id is required", nil))
		return
	}
	if !types.ValidResponseAction(req.Action) {
		Error(w, r, types.NewAppError(types.ErrCodeValidationAction,
			"unknown response action "+string(req.Action), nil))
		return
	}

	rec, err := h.engine.RecordResponse(r.Context(), req.ID, req.Action)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: rec})
}

// GetForecast predicts the score half an hour ahead from recent history.
// The in-memory tail is preferred; the store backfills after a restart.
func (h *Handlers) GetForecast(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.StateSnapshot(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}

	history := snap.RecentScores
	if len(history) < forecast.SeqLen {
		if stored, err := h.history.LastScores(r.Context(), forecast.SeqLen); err == nil && len(stored) > len(history) {
			history = stored
		}
	}

	result, err := h.forecaster.Predict(r.Context(), history)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: result})
}

// TrainForecast triggers a training pass. Insufficient data is a successful
// response with success=false; a concurrent run is a 409.
func (h *Handlers) TrainForecast(w http.ResponseWriter, r *http.Request) {
	result, err := h.forecaster.TrainModel(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: result})
}

// ForecastStatus reports model readiness and snapshot volume.
func (h *Handlers) ForecastStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.forecaster.Status(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: st})
}
