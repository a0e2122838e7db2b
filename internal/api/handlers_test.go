package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusd/internal/config"
	"focusd/internal/session"
	"focusd/internal/types"
)

type stubPersister struct{}

func (stubPersister) EnqueueEvent(types.ActivityEvent)             {}
func (stubPersister) EnqueueScore(types.ScoreSnapshot)             {}
func (stubPersister) EnqueueIntervention(types.InterventionRecord) {}

type stubNotifier struct{}

func (stubNotifier) NotifyScore(context.Context, types.ScoreSnapshot)             {}
func (stubNotifier) NotifyAlert(context.Context, types.Alert)                     {}
func (stubNotifier) NotifyIntervention(context.Context, types.InterventionNotice) {}

type stubForecaster struct {
	prediction types.PredictionResult
	status     types.ForecastStatus
	training   types.TrainingResult
	trainErr   error
}

func (f *stubForecaster) Predict(context.Context, []types.ScoreSnapshot) (types.PredictionResult, error) {
	return f.prediction, nil
}

func (f *stubForecaster) GenerateInsight(context.Context, []types.ScoreSnapshot) (types.Insight, error) {
	return types.Insight{Kind: "stable", Title: "Steady"}, nil
}

func (f *stubForecaster) StoreSnapshot(context.Context, types.TrainingSnapshot) error { return nil }

func (f *stubForecaster) TrainModel(context.Context) (types.TrainingResult, error) {
	return f.training, f.trainErr
}

func (f *stubForecaster) Status(context.Context) (types.ForecastStatus, error) {
	return f.status, nil
}

type stubHistory struct{}

func (stubHistory) AppendEvent(context.Context, types.ActivityEvent) error             { return nil }
func (stubHistory) AppendScore(context.Context, types.ScoreSnapshot) error             { return nil }
func (stubHistory) AppendIntervention(context.Context, types.InterventionRecord) error { return nil }
func (stubHistory) ScoresSince(context.Context, time.Time) ([]types.ScoreSnapshot, error) {
	return nil, nil
}
func (stubHistory) LastScores(context.Context, int) ([]types.ScoreSnapshot, error) { return nil, nil }
func (stubHistory) InterventionsSince(context.Context, time.Time) ([]types.InterventionRecord, error) {
	return nil, nil
}
func (stubHistory) PurgeOlderThan(context.Context, int) (int64, error)           { return 0, nil }
func (stubHistory) UpsertDailySummary(context.Context, types.DailySummary) error { return nil }
func (stubHistory) DailySummaries(context.Context, int) ([]types.DailySummary, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *session.Engine) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	forecaster := &stubForecaster{
		prediction: types.PredictionResult{PredictedScore: 62, Confidence: 0.8},
		status:     types.ForecastStatus{Ready: true},
		training:   types.TrainingResult{Success: true, Samples: 400},
	}

	engine := session.NewEngine(session.EngineConfig{
		Session: config.SessionConfig{
			TickInterval: time.Hour, // ticks are irrelevant to handler tests
			WindowSpan:   10 * time.Minute,
			IngestBuffer: 64,
		},
		Thresholds: config.DefaultThresholds(),
		Persister:  stubPersister{},
		Notifier:   stubNotifier{},
		Forecaster: forecaster,
		Logger:     logger,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.Run(ctx) //nolint:errcheck
	}()

	history := stubHistory{}
	handlers := NewHandlers(engine,
		session.NewDashboard(engine, history, forecaster, nil, logger),
		forecaster, history, nil, logger)
	srv := NewServer(config.ServerConfig{
		Addr:            "127.0.0.1:0",
		ShutdownTimeout: time.Second,
	}, handlers, http.NotFoundHandler(), nil, logger)

	ts := httptest.NewServer(srv.router)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})
	return ts, engine
}

func postJSON(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) ErrorDetail {
	t.Helper()
	var out APIErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Error
}

func TestIngestEventAccepted(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts, "/v1/events", `{"type":"tab_switch"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out struct {
		Data ingestResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Data.Accepted)
}

func TestIngestEventUnknownTypeAcceptedAndDropped(t *testing.T) {
	ts, engine := newTestServer(t)

	resp := postJSON(t, ts, "/v1/events", `{"type":"eye_tracking"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out struct {
		Data ingestResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Data.Accepted)
	assert.Zero(t, engine.DroppedEvents())
}

func TestIngestEventValidation(t *testing.T) {
	ts, _ := newTestServer(t)
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name     string
		body     string
		wantCode types.ErrorCode
	}{
		{"malformed json", `{"type":`, types.ErrCodeValidationPayload},
		{"empty body", ``, types.ErrCodeValidationPayload},
		{"missing type", `{"payload":{}}`, types.ErrCodeValidationMissingField},
		{"unknown field", `{"type":"tab_switch","bogus":1}`, types.ErrCodeValidationPayload},
		{"future timestamp", fmt.Sprintf(`{"type":"tab_switch","timestamp":%q}`, future), types.ErrCodeValidationTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts, "/v1/events", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			detail := decodeError(t, resp)
			assert.Equal(t, string(tt.wantCode), detail.Code)
			assert.NotEmpty(t, detail.RequestID)
		})
	}
}

func TestGetScore(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/score")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var out struct {
		Data types.ScoreReport `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	// No tick has run yet; the report reflects a fresh session.
	assert.GreaterOrEqual(t, out.Data.Score, 0.0)
}

func TestGetDashboard(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/dashboard")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Data types.DashboardData `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, types.IdleStateActive, out.Data.IdleState)
	require.Len(t, out.Data.Insights, 1)
	assert.Equal(t, "stable", out.Data.Insights[0].Kind)
}

func TestGetAlertsEmpty(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/alerts")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConsumeUnknownAlert(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts, "/v1/alerts/nope/consume", ``)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(types.ErrCodeNotFoundAlert), decodeError(t, resp).Code)
}

func TestInterventionResponseValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts, "/v1/interventions/response", `{"action":"dismissed"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), decodeError(t, resp).Code)

	resp = postJSON(t, ts, "/v1/interventions/response", `{"id":"x","action":"shrugged"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(types.ErrCodeValidationAction), decodeError(t, resp).Code)

	resp = postJSON(t, ts, "/v1/interventions/response", `{"id":"x","action":"dismissed"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(types.ErrCodeNotFoundIntervention), decodeError(t, resp).Code)
}

func TestGetForecast(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/forecast")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Data types.PredictionResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 62.0, out.Data.PredictedScore)
}

func TestTrainForecast(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts, "/v1/forecast/train", ``)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Data types.TrainingResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Data.Success)
}

func TestForecastStatus(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/forecast/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthzWithoutDatabase(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthzDegradedWhenDatabaseUnreachable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(config.ServerConfig{
		Addr:            "127.0.0.1:0",
		ShutdownTimeout: time.Second,
	}, nil, http.NotFoundHandler(), failingPinger{}, logger)

	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, string(types.ErrCodeUnavailable), decodeError(t, resp).Code)
}

func TestRequestIDPropagation(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/score", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "trace-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "trace-123", resp.Header.Get("X-Request-Id"))
}
