// Package api exposes the focusd HTTP surface: event ingestion, score and
// dashboard reads, intervention responses, forecast access and the WebSocket
// notification endpoint. The daemon binds to loopback; there is no auth
// layer because the API never leaves the machine.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"focusd/internal/config"
	"focusd/internal/types"
)

// Pinger is the narrow health-check dependency (satisfied by *pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server wiring routes to the session engine, forecaster
// and stores.
type Server struct {
	cfg        config.ServerConfig
	handlers   *Handlers
	ws         http.Handler
	db         Pinger
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
}

// NewServer creates a Server with all routes and middleware mounted.
func NewServer(cfg config.ServerConfig, handlers *Handlers, ws http.Handler, db Pinger, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		handlers: handlers,
		ws:       ws,
		db:       db,
		logger:   logger,
		router:   chi.NewRouter(),
	}
	s.mountRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// mountRoutes registers middleware (strict order: recoverer outermost, then
// request ID, then logging) and the endpoint tree.
func (s *Server) mountRoutes() {
	s.router.Use(s.recoverer)
	s.router.Use(requestIDMiddleware)
	s.router.Use(requestLogger(s.logger))

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/events", s.handlers.IngestEvent)
		r.Get("/score", s.handlers.GetScore)
		r.Get("/dashboard", s.handlers.GetDashboard)

		r.Get("/alerts", s.handlers.GetAlerts)
		r.Post("/alerts/{id}/consume", s.handlers.ConsumeAlert)
		r.Post("/interventions/response", s.handlers.InterventionResponse)

		r.Get("/forecast", s.handlers.GetForecast)
		r.Post("/forecast/train", s.handlers.TrainForecast)
		r.Get("/forecast/status", s.handlers.ForecastStatus)

		r.Get("/healthz", s.handleHealth)
	})

	// WebSocket endpoint sits outside /v1: it speaks its own protocol and
	// must bypass the write-timeout-sensitive JSON middleware conventions.
	s.router.Get("/ws", s.ws.ServeHTTP)
}

// Run serves until ctx is cancelled, then shuts down gracefully within the
// configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return ctx.Err()
}

// handleHealth reports process liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			Error(w, r, types.NewAppError(types.ErrCodeUnavailable,
				"database unreachable", err))
			return
		}
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]string{"status": "ok"}})
}

// recoverer catches panics in the handler chain, logs the stack trace and
// returns a standardized 500. Must be the outermost middleware.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				s.logger.Error("panic recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("panic", fmt.Sprintf("%v", rvr)),
					slog.String("stack", string(debug.Stack())),
				)
				Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected,
					"an unexpected error occurred", nil))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware generates or propagates a correlation ID and exposes
// it via context and the X-Request-Id response header.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}
		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID produces a random hex correlation ID.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback-" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

// responseCapture wraps an http.ResponseWriter to capture the status code
// written by downstream handlers.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Unwrap enables http.ResponseController to reach the underlying writer,
// which the WebSocket upgrade requires.
func (rc *responseCapture) Unwrap() http.ResponseWriter {
	return rc.ResponseWriter
}

// requestLogger logs request metadata at a level matching the status code.
// Event ingestion logs at debug: one line per sensor event at info would
// drown everything else.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rc, r)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rc.statusCode),
				slog.Duration("duration", time.Since(start)),
			}
			if reqID := types.GetRequestID(r.Context()); reqID != "" {
				args = append(args, slog.String("request_id", reqID))
			}

			switch {
			case rc.statusCode >= 500:
				logger.Error("request completed", args...)
			case rc.statusCode >= 400:
				logger.Warn("request completed", args...)
			case strings.HasSuffix(r.URL.Path, "/events"):
				logger.Debug("request completed", args...)
			default:
				logger.Info("request completed", args...)
			}
		})
	}
}
