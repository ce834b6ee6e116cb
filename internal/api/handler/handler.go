// Package handler implements the HTTP endpoints. Handlers are thin adapters:
// decode, call into the domain packages, encode.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/albapepper/autotrack/internal/api/respond"
	"github.com/albapepper/autotrack/internal/config"
	"github.com/albapepper/autotrack/internal/store"
	"github.com/albapepper/autotrack/internal/sweep"
)

// Handler holds shared dependencies for all endpoints.
type Handler struct {
	store     *store.Store
	cfg       *config.Config
	sweeper   *sweep.Sweeper
	scheduler *sweep.Scheduler
	logger    *slog.Logger
}

// New creates a handler with its dependencies.
func New(st *store.Store, cfg *config.Config, sweeper *sweep.Sweeper, scheduler *sweep.Scheduler, logger *slog.Logger) *Handler {
	return &Handler{
		store:     st,
		cfg:       cfg,
		sweeper:   sweeper,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Root returns basic service identification.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]any{
		"service":     "autotrack",
		"environment": h.cfg.Environment,
	})
}

// HealthCheck reports process liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthCheckDB reports database reachability.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.store.HealthCheck(); err != nil {
		respond.ErrorDetail(w, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unreachable", err.Error())
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
