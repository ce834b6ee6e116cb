// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/ops; everything is read once here
// and passed into constructors so the core stays testable without environment
// mutation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is populated from environment variables at startup.
type Config struct {
	// Storage
	DatabasePath string

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Web push (VAPID)
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	// Sweep
	CronSecret           string
	SweepInterval        time.Duration
	SweepWarmup          time.Duration
	DisableInternalSweep bool
}

const (
	defaultSweepInterval = 15 * time.Second
	minSweepInterval     = 10 * time.Second
	defaultSweepWarmup   = 2500 * time.Millisecond
)

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbDir := envOr("AUTOTRACK_DB_DIR", ".data")
	interval := envDuration("AUTOTRACK_SWEEP_INTERVAL", defaultSweepInterval)
	if interval < minSweepInterval {
		interval = minSweepInterval
	}

	return &Config{
		DatabasePath: filepath.Join(dbDir, "autotrack.sqlite"),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		VAPIDPublicKey:  strings.TrimSpace(envOr("VAPID_PUBLIC_KEY", "")),
		VAPIDPrivateKey: strings.TrimSpace(envOr("VAPID_PRIVATE_KEY", "")),
		VAPIDSubject:    strings.TrimSpace(envOr("VAPID_SUBJECT", "mailto:admin@autotrack.local")),

		CronSecret:           strings.TrimSpace(envOr("AUTOTRACK_CRON_SECRET", "")),
		SweepInterval:        interval,
		SweepWarmup:          envDuration("AUTOTRACK_SWEEP_WARMUP", defaultSweepWarmup),
		DisableInternalSweep: envBool("AUTOTRACK_DISABLE_INTERNAL_SWEEP", false),
	}, nil
}

// PushReady reports whether both delivery keys are configured.
func (c *Config) PushReady() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
