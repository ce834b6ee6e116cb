package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/albapepper/autotrack/internal/api/respond"
	"github.com/albapepper/autotrack/internal/sweep"
)

// CronSecretHeader carries the sweep trigger's shared secret.
const CronSecretHeader = "X-Autotrack-Cron-Secret"

// HandleSweep runs one sweep pass on demand (host-platform cron or manual
// trigger) and returns its report. When a secret is configured, missing or
// wrong credentials are rejected before the sweep runs.
func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	h.scheduler.EnsureStarted()

	if !h.sweepAuthorized(r) {
		respond.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}

	report, err := h.sweeper.Run(r.Context(), sweep.Options{DryRun: parseDryRun(r)})
	if err != nil {
		h.logger.Error("sweep trigger failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "SWEEP_FAILED", "Unable to execute push sweep")
		return
	}
	respond.JSON(w, http.StatusOK, report)
}

func (h *Handler) sweepAuthorized(r *http.Request) bool {
	configured := h.cfg.CronSecret
	if configured == "" {
		return true
	}

	if direct := r.Header.Get(CronSecretHeader); direct != "" {
		return subtle.ConstantTimeCompare([]byte(direct), []byte(configured)) == 1
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		return subtle.ConstantTimeCompare([]byte(token), []byte(configured)) == 1
	}

	return false
}

func parseDryRun(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("dryRun")) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
