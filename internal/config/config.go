// Package config defines service configuration and how it is loaded.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Backends accepted by the store and bus settings.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	BusMemory     = "memory"
	BusNATS       = "nats"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the collaborator store backend: memory or postgres.
	Store string `koanf:"store"`

	// PostgresDSN is required when Store is postgres.
	PostgresDSN string `koanf:"postgres_dsn"`

	// Bus selects how score changes are broadcast: memory or nats.
	Bus string `koanf:"bus"`

	NATSURL     string `koanf:"nats_url"`
	NATSSubject string `koanf:"nats_subject"`

	// SeedFile is an optional YAML fixture loaded into the store at startup.
	SeedFile string `koanf:"seed_file"`

	// WorkerCount sets the number of recompute workers.
	WorkerCount int `koanf:"worker_count"`

	// EventQueueSize bounds the score-change queue.
	EventQueueSize int `koanf:"queue_size"`

	// DedupeSize bounds the number of events with a pending recompute.
	DedupeSize int `koanf:"dedupe_size"`

	// RecomputeWindowMS is how long changes to one event are coalesced.
	RecomputeWindowMS int `koanf:"recompute_window_ms"`

	// MaxLeaderboardLimit caps GET /events/{id}/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// RateLimitRPS and RateLimitBurst bound write requests per client IP.
	// A zero RPS disables limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		Store:               StoreMemory,
		Bus:                 BusMemory,
		NATSURL:             "nats://127.0.0.1:4222",
		NATSSubject:         "arena.scores.changed",
		WorkerCount:         runtime.NumCPU(),
		EventQueueSize:      10_000,
		DedupeSize:          10_000,
		RecomputeWindowMS:   250,
		MaxLeaderboardLimit: 100,
		RateLimitRPS:        20,
		RateLimitBurst:      40,
	}
}

// RecomputeWindow returns RecomputeWindowMS as a duration.
func (c *Config) RecomputeWindow() time.Duration {
	return time.Duration(c.RecomputeWindowMS) * time.Millisecond
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StorePostgres:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == StorePostgres && c.PostgresDSN == "":
		return fmt.Errorf("%w: postgres_dsn is required for the postgres store", ErrInvalidConfig)
	case c.Bus != BusMemory && c.Bus != BusNATS:
		return fmt.Errorf("%w: unknown bus %q", ErrInvalidConfig, c.Bus)
	case c.Bus == BusNATS && c.NATSURL == "":
		return fmt.Errorf("%w: nats_url is required for the nats bus", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.LogFormat)
	case c.WorkerCount < 1 || c.EventQueueSize < 1 || c.DedupeSize < 1:
		return fmt.Errorf("%w: worker_count, queue_size and dedupe_size must be positive", ErrInvalidConfig)
	case c.RecomputeWindowMS < 0:
		return fmt.Errorf("%w: recompute_window_ms must not be negative", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.RateLimitRPS < 0 || (c.RateLimitRPS > 0 && c.RateLimitBurst < 1):
		return fmt.Errorf("%w: rate limit needs a non-negative rps and a positive burst", ErrInvalidConfig)
	}
	return nil
}
