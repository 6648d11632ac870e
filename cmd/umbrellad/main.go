// Package main is the entry point for the umbrella daemon.
//
// It loads configuration, connects to PostgreSQL, wires the decision
// pipeline (location chain, forecast service, alarm scheduler, notifier),
// recovers persisted scheduling state, and serves the local control API
// while the cron orchestrator keeps the verdict fresh.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"umbrella/internal/alarm"
	"umbrella/internal/api/handlers"
	"umbrella/internal/config"
	"umbrella/internal/core"
	"umbrella/internal/db"
	"umbrella/internal/decision"
	"umbrella/internal/external"
	"umbrella/internal/location"
	"umbrella/internal/notify"
	"umbrella/internal/pipeline"
	"umbrella/internal/recheck"
	"umbrella/internal/types"
	"umbrella/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("umbrella daemon starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone: %w", err)
	}
	clock := types.RealClock{}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database.
	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	scheduleRepo := db.NewScheduleRepository(pool)
	settingsRepo := db.NewSettingsRepository(pool)
	statusRepo := db.NewStatusRepository(pool)
	cacheRepo := db.NewForecastCacheRepository(pool)
	locationRepo := db.NewLocationRepository(pool)

	// Forecast path.
	userAgent := fmt.Sprintf("umbrellad/%s", cfg.Build.Version)
	forecastBase := external.NewBaseClient(
		&http.Client{Timeout: cfg.Weather.Timeout},
		"forecast-api",
		external.DefaultRetryPolicy(),
		userAgent,
	)
	forecastClient := weather.NewClient(forecastBase, cfg.Weather.BaseURL, cfg.Timezone, cfg.Weather.ForecastDays)
	forecastSvc := weather.NewService(forecastClient, cacheRepo, clock, tz, cfg.Weather.CacheTTL, logger)

	// Daemon deployments have no position source; the chain starts at the
	// cached fix and falls through to the manual location.
	chain := location.NewChain(location.None{}, locationRepo, cfg.Location.Timeout, logger)

	engine := decision.NewEngine(settingsRepo, chain, forecastSvc, clock, tz, logger)

	var notifier notify.Notifier
	if cfg.Notify.Mode == "webhook" {
		notifier = notify.NewWebhookNotifier(cfg.Notify, clock, userAgent)
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	// The driver dispatches firings into the pipeline; the pipeline needs
	// the scheduler built on the driver. Close over the pointer and assign
	// before anything is armed.
	var pl *pipeline.Pipeline
	onFire := func(ctx context.Context, slot alarm.Slot, payload alarm.Payload) {
		var err error
		switch slot {
		case alarm.SlotPrimary:
			err = pl.HandleAlarmFired(ctx, payload)
		case alarm.SlotPreCheck:
			err = pl.HandlePreCheckFired(ctx)
		}
		if err != nil {
			logger.ErrorContext(ctx, "wake-up handling failed", "slot", string(slot), "error", err)
		}
	}

	var driverOpts []alarm.TimerDriverOption
	if !cfg.Alarm.ExactWake {
		driverOpts = append(driverOpts, alarm.WithExactDisabled())
	}
	driver := alarm.NewTimerDriver(onFire, clock, logger, driverOpts...)
	scheduler := alarm.NewScheduler(driver, scheduleRepo, clock,
		cfg.Alarm.BufferMinutes, cfg.Alarm.PreCheckOffsetMinutes, logger)

	pl = pipeline.New(engine, scheduler, statusRepo, settingsRepo, notifier,
		clock, tz, cfg.Notify.SuppressDuplicates, cfg.Notify.FailureThreshold, logger)

	// Re-arm whatever the previous run left behind.
	recovery := recheck.NewRecovery(scheduler, settingsRepo, pl, logger)
	if err := recovery.Recover(ctx); err != nil {
		logger.Error("startup recovery failed", "error", err)
	}

	// SIGHUP stands in for the clock or timezone changing under the
	// daemon: armed wake-ups are recomputed against the current time.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("received SIGHUP, re-running schedule recovery")
				if err := recovery.Recover(ctx); err != nil {
					logger.Error("recovery after SIGHUP failed", "error", err)
				}
			}
		}
	}()

	recheckTimes, err := cfg.Recheck.ParsedTimes()
	if err != nil {
		return fmt.Errorf("parsing re-check times: %w", err)
	}
	orchestrator := recheck.NewOrchestrator(pl, recheckTimes,
		cfg.Recheck.MaxAttempts, tz, logger)
	if err := orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("starting re-check orchestrator: %w", err)
	}
	defer orchestrator.Stop()

	// Control API.
	srv, err := core.NewServer(cfg, logger, pool)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	statusHandler := handlers.NewStatusHandler(statusRepo, scheduleRepo, tz, logger)
	settingsHandler := handlers.NewSettingsHandler(settingsRepo, pl, logger)
	checkHandler := handlers.NewCheckHandler(pl, statusRepo, logger)
	srv.MountRoutes(func(r chi.Router) {
		statusHandler.RegisterRoutes(r)
		settingsHandler.RegisterRoutes(r)
		checkHandler.RegisterRoutes(r)
	})

	httpServer := &http.Server{
		Addr:         srv.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("daemon stopped cleanly")
	return nil
}

// newPool builds the pgx connection pool from the database configuration.
func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
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
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
