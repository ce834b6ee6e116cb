// Package api wires the HTTP surface: router, middleware, and handlers.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	"github.com/albapepper/autotrack/internal/api/handler"
	"github.com/albapepper/autotrack/internal/config"
	"github.com/albapepper/autotrack/internal/store"
	"github.com/albapepper/autotrack/internal/sweep"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(st *store.Store, cfg *config.Config, sweeper *sweep.Sweeper, scheduler *sweep.Scheduler, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "Authorization", handler.CronSecretHeader},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Handler dependencies ---
	h := handler.New(st, cfg, sweeper, scheduler, logger)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Household snapshot
		r.Get("/storage", h.GetSnapshot)
		r.Put("/storage", h.PutSnapshot)

		// Vehicle actions
		r.Route("/vehicles/{vehicleID}", func(r chi.Router) {
			r.Get("/stats", h.GetVehicleStats)
			r.Post("/odometer", h.PostOdometer)
			r.Post("/maintenance", h.PostMaintenance)
			r.Post("/intervals", h.PostIntervals)
			r.Post("/reminder", h.PostReminder)
			r.Delete("/reminder/{maintenanceType}", h.DeleteReminder)
		})

		// Push
		r.Route("/push", func(r chi.Router) {
			r.Get("/config", h.GetPushConfig)
			r.Get("/subscriptions", h.GetSubscriptionCount)
			r.Post("/subscriptions", h.PostSubscription)
			r.Delete("/subscriptions", h.DeleteSubscription)
			r.Get("/sweep", h.HandleSweep)
			r.Post("/sweep", h.HandleSweep)
		})
	})

	return r
}
