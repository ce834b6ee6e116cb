// Command api is the AutoTrack maintenance API server.
//
// Usage:
//
//	autotrack-api
//	API_PORT=8080 autotrack-api
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/albapepper/autotrack/internal/api"
	"github.com/albapepper/autotrack/internal/config"
	"github.com/albapepper/autotrack/internal/push"
	"github.com/albapepper/autotrack/internal/store"
	"github.com/albapepper/autotrack/internal/sweep"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Open database
	logger.Info("Opening database...", "path", cfg.DatabasePath)
	st, err := store.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	logger.Info("Database ready", "path", st.Path())

	// Web push sender (nil when VAPID keys are absent; sweep still runs
	// stage bookkeeping without delivery)
	sender := push.NewSender(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject, logger)
	if sender != nil {
		logger.Info("Web push delivery enabled", "subject", cfg.VAPIDSubject)
	} else {
		logger.Info("Web push delivery disabled (no VAPID keys)")
	}

	// Sweep engine and its internal schedule. The scheduler holds the
	// process context so handler-triggered starts outlive their request.
	sweeper := sweep.NewSweeper(st, sender, logger)
	scheduler := sweep.NewScheduler(ctx, sweeper, cfg.SweepInterval, cfg.SweepWarmup, cfg.DisableInternalSweep, logger)
	if scheduler.EnsureStarted() {
		logger.Info("Internal sweep loop started",
			"interval", cfg.SweepInterval,
			"warmup", cfg.SweepWarmup)
	} else {
		logger.Info("Internal sweep loop disabled (external cron expected)")
	}

	// Create router
	router := api.NewRouter(st, cfg, sweeper, scheduler, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting AutoTrack API",
			"addr", addr,
			"environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
