package sweep

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Scheduler drives the sweeper on a fixed cadence: one warm-up tick shortly
// after start (so a fresh process doesn't wait a full interval), then a
// repeating timer until the process context ends. At most one loop runs per
// process; it is never explicitly stopped.
//
// The loop runs on the context captured at construction, not the caller's:
// EnsureStarted is reachable from request handlers, and a request-scoped
// context must not bound the loop's lifetime.
type Scheduler struct {
	ctx      context.Context
	sweeper  *Sweeper
	interval time.Duration
	warmup   time.Duration
	disabled bool
	logger   *slog.Logger
	started  atomic.Bool
}

// NewScheduler builds a scheduler. ctx is the process lifetime; interval,
// warm-up, and the disabled flag come from config, so callers can request a
// start without re-checking deployment mode.
func NewScheduler(ctx context.Context, sweeper *Sweeper, interval, warmup time.Duration, disabled bool, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		ctx:      ctx,
		sweeper:  sweeper,
		interval: interval,
		warmup:   warmup,
		disabled: disabled,
		logger:   logger,
	}
}

// EnsureStarted launches the sweep loop if it is not already running.
// Idempotent: request handlers may call it freely without creating duplicate
// timers. When the internal sweep is disabled (external cron deployments) it
// never starts and returns false. Returns true when the loop is running (now
// or already).
func (s *Scheduler) EnsureStarted() bool {
	if s.disabled || s.interval <= 0 {
		return false
	}
	if !s.started.CompareAndSwap(false, true) {
		return true
	}

	s.logger.Info("Push sweep scheduler started", "interval", s.interval, "warmup", s.warmup)
	go s.run(s.ctx)
	return true
}

func (s *Scheduler) run(ctx context.Context) {
	warmup := time.NewTimer(s.warmup)
	defer warmup.Stop()

	select {
	case <-warmup.C:
		s.tick(ctx)
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			s.logger.Info("Push sweep scheduler stopped")
			return
		}
	}
}

// tick runs one pass, swallowing errors so transient push or storage
// problems never kill the loop.
func (s *Scheduler) tick(ctx context.Context) {
	report, err := s.sweeper.Run(ctx, Options{})
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
		return
	}
	if report.SentCount+report.FailedCount+report.ClearedStages > 0 {
		s.logger.Info("sweep pass",
			"checks", report.Checks,
			"sent", report.SentCount,
			"failed", report.FailedCount,
			"removed", report.RemovedCount,
			"stage_updates", report.StageUpdates,
			"cleared", report.ClearedStages)
	}
}
