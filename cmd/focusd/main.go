// Package main is the entry point for the focusd daemon.
//
// It loads configuration, connects to PostgreSQL, and starts the long-lived
// goroutines under one errgroup: the session engine, the forecast worker,
// the write-behind flusher, the WebSocket hub, the maintenance pass, the
// thresholds watcher and the HTTP server. Cancellation of any one (or an OS
// signal) winds the whole daemon down gracefully.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"focusd/internal/api"
	"focusd/internal/batch"
	"focusd/internal/config"
	"focusd/internal/forecast"
	"focusd/internal/notify"
	"focusd/internal/session"
	"focusd/internal/store"
	"focusd/internal/types"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("focusd starting",
		"environment", cfg.Environment,
		"addr", cfg.Server.Addr,
	)

	thresholds := config.DefaultThresholds()
	if cfg.ThresholdsPath != "" {
		thresholds, err = config.LoadThresholds(cfg.ThresholdsPath)
		if err != nil {
			return fmt.Errorf("loading thresholds: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	clock := types.RealClock{}
	history := store.NewHistoryRepository(pool)
	training := store.NewTrainingRepository(pool)

	// Notification fan-out: WebSocket hub plus optional signed webhook.
	hub := notify.NewHub()
	notifier := notify.NewNotifier(hub, notify.NewWebhookClient(cfg.Notify), logger)

	// Forecasting: shared regressor behind the worker's serialized loop.
	regressor := forecast.NewRidgeRegressor()
	forecaster := forecast.NewWorker(forecast.WorkerConfig{
		Predictor: forecast.NewPredictor(regressor, clock, logger),
		Trainer:   forecast.NewTrainer(training, regressor, cfg.Forecast, clock, logger),
		Store:     training,
		Forecast:  cfg.Forecast,
		Clock:     clock,
		Logger:    logger,
	})

	writer := batch.NewWriter(history, cfg.Session.FlushInterval, logger)

	engine := session.NewEngine(session.EngineConfig{
		Session:    cfg.Session,
		Thresholds: thresholds,
		Persister:  writer,
		Notifier:   notifier,
		Forecaster: forecaster,
		Clock:      clock,
		Logger:     logger,
	})

	dashboard := session.NewDashboard(engine, history, forecaster, clock, logger)
	handlers := api.NewHandlers(engine, dashboard, forecaster, history, clock, logger)
	server := api.NewServer(cfg.Server, handlers, hub, pool, logger)
	maintenance := store.NewMaintenance(history, training, cfg.Retention, clock, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error { return forecaster.Run(ctx) })
	g.Go(func() error { return writer.Run(ctx) })
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return maintenance.Run(ctx) })
	g.Go(func() error { return server.Run(ctx) })
	if cfg.ThresholdsPath != "" {
		g.Go(func() error {
			return config.WatchThresholds(ctx, cfg.ThresholdsPath, logger, engine.SetThresholds)
		})
	}

	err = g.Wait()
	logger.Info("focusd stopped")
	return err
}

// newPool builds the pgx pool from config and verifies connectivity.
func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	pc.MaxConns = int32(cfg.MaxConns)
	pc.MinConns = int32(cfg.MinConns)
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
