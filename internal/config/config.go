// Package config defines service configuration and its loading.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/stagegate/internal/domain/model"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// MetricsEnabled turns Prometheus recording on; /healthz still serves
	// the registry when it is off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	StoreDriver string `koanf:"store_driver"`
	SQLitePath  string `koanf:"sqlite_path"`

	// BcryptCost is the work factor used when hashing team secrets.
	BcryptCost int `koanf:"bcrypt_cost"`

	// MaxLeaderboardLimit caps the rows returned by leaderboard reads.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ArtifactBaseURL prefixes every artifact file name handed to teams.
	ArtifactBaseURL string `koanf:"artifact_base_url"`

	// ArtifactDir, when set, is served read-only under ArtifactBaseURL.
	ArtifactDir string `koanf:"artifact_dir"`

	// AsyncRanking moves rank passes off the request path onto the queue.
	AsyncRanking        bool          `koanf:"async_ranking"`
	RankQueueSize       int           `koanf:"rank_queue_size"`
	RankWorkerCount     int           `koanf:"rank_worker_count"`
	RankRefreshInterval time.Duration `koanf:"rank_refresh_interval"`

	// SeedOnStart writes the default stage definitions and region schedule
	// at startup; SeedDemoTeams also registers a few sample teams.
	SeedOnStart   bool `koanf:"seed_on_start"`
	SeedDemoTeams bool `koanf:"seed_demo_teams"`

	// RegionStartTimes maps a region code to an RFC3339 opening instant.
	RegionStartTimes map[string]string `koanf:"region_start_times"`
}

// New creates a Config with defaults. The context is reserved for
// loaders that need it.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		ShutdownTimeout:     10 * time.Second,
		MetricsEnabled:      true,
		StoreDriver:         StoreMemory,
		SQLitePath:          "data/stagegate.db",
		BcryptCost:          10,
		MaxLeaderboardLimit: 100,
		ArtifactBaseURL:     "/pdfs/",
		AsyncRanking:        false,
		RankQueueSize:       256,
		RankWorkerCount:     1,
		RankRefreshInterval: 0,
		SeedOnStart:         true,
		RegionStartTimes:    map[string]string{},
	}
}

// Validate checks field values and cross-field constraints.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path is required for the sqlite driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.MaxLeaderboardLimit < 1 {
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	if c.AsyncRanking && (c.RankQueueSize < 1 || c.RankWorkerCount < 1) {
		return fmt.Errorf("%w: async ranking needs a positive queue size and worker count", ErrInvalidConfig)
	}
	if c.RankRefreshInterval < 0 {
		return fmt.Errorf("%w: rank_refresh_interval must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Schedule(); err != nil {
		return err
	}
	return nil
}

// Schedule parses RegionStartTimes.
func (c *Config) Schedule() (model.RegionSchedule, error) {
	out := make(model.RegionSchedule, len(c.RegionStartTimes))
	for code, raw := range c.RegionStartTimes {
		r, err := model.ParseRegion(strings.ToUpper(code))
		if err != nil {
			return nil, fmt.Errorf("%w: region_start_times: %w", ErrInvalidConfig, err)
		}
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: region_start_times[%s]: %w", ErrInvalidConfig, code, err)
		}
		out[r] = at.UTC()
	}
	return out, nil
}
