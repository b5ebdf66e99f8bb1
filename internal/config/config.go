// Package config defines service configuration and its layered loading.
//
// Conventions:
// - New(ctx) returns the defaults; Load(ctx) layers file and env on top.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/toolrank/internal/domain/algorithm"
	"github.com/okian/toolrank/internal/domain/tier"
)

// Period granularities.
const (
	GranularityWeek  = "week"
	GranularityMonth = "month"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite file; ":memory:" keeps everything in process.
	DBPath string `koanf:"db_path"`
	// SnapshotPath is the YAML file holding tool metrics and seed events.
	SnapshotPath string `koanf:"snapshot_path"`

	// EventQueueSize bounds the in-memory event queue.
	EventQueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of event workers.
	WorkerCount int `koanf:"worker_count"`
	// ScoringWorkers bounds the per-tool fan-out of a scoring pass.
	ScoringWorkers int `koanf:"scoring_workers"`
	// DedupeSize sets how many event ids are remembered in memory.
	DedupeSize int `koanf:"dedupe_size"`
	// MaxLeaderboardLimit caps ?limit on list endpoints.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ActiveAlgorithm is the version new periods are scored with.
	ActiveAlgorithm string `koanf:"active_algorithm"`
	// Algorithms are registered after the built-in versions.
	Algorithms []algorithm.Version `koanf:"algorithms"`

	// PeriodGranularity is week or month.
	PeriodGranularity string `koanf:"period_granularity"`
	// PeriodCloseCron schedules automatic period close; empty disables it.
	PeriodCloseCron string `koanf:"period_close_cron"`
	// Timezone is the cron schedule's location.
	Timezone string `koanf:"timezone"`

	// IngestRatePerSec and IngestBurst limit POST /events.
	IngestRatePerSec float64 `koanf:"ingest_rate_per_sec"`
	IngestBurst      int     `koanf:"ingest_burst"`

	DecayHorizonDays       float64 `koanf:"decay_horizon_days"`
	DecayExponent          float64 `koanf:"decay_exponent"`
	DecayMaxEventsPerType  int     `koanf:"decay_max_events_per_type"`
	DecayDiminishingFactor float64 `koanf:"decay_diminishing_factor"`

	// DeltaCap bounds per-factor deltas for versions without their own cap.
	DeltaCap float64 `koanf:"delta_cap"`
	// TieEpsilon is the score granularity below which tools tie.
	TieEpsilon float64 `koanf:"tie_epsilon"`
	// Tiers maps final positions to tier labels.
	Tiers tier.Policy `koanf:"tiers"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New returns the defaults. Context is accepted first to follow the
// project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		DBPath:                 "toolrank.db",
		SnapshotPath:           "tools.yaml",
		EventQueueSize:         10_000,
		WorkerCount:            runtime.NumCPU(),
		ScoringWorkers:         runtime.NumCPU(),
		DedupeSize:             100_000,
		MaxLeaderboardLimit:    100,
		ActiveAlgorithm:        algorithm.Latest,
		PeriodGranularity:      GranularityWeek,
		PeriodCloseCron:        "0 0 * * 1",
		Timezone:               "UTC",
		IngestRatePerSec:       50,
		IngestBurst:            100,
		DecayHorizonDays:       365,
		DecayExponent:          2,
		DecayMaxEventsPerType:  5,
		DecayDiminishingFactor: 0.7,
		DeltaCap:               algorithm.DefaultDeltaCap,
		TieEpsilon:             0.001,
		Tiers:                  tier.DefaultPolicy.Clone(),
		ShutdownTimeout:        10 * time.Second,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.PeriodGranularity != GranularityWeek && c.PeriodGranularity != GranularityMonth:
		return fmt.Errorf("%w: period_granularity %q must be week or month", ErrInvalidConfig, c.PeriodGranularity)
	case c.DecayHorizonDays <= 0:
		return fmt.Errorf("%w: decay_horizon_days must be positive", ErrInvalidConfig)
	case strings.TrimSpace(c.ActiveAlgorithm) == "":
		return fmt.Errorf("%w: active_algorithm must not be empty", ErrInvalidConfig)
	case c.DecayDiminishingFactor < 0 || c.DecayDiminishingFactor > 1:
		return fmt.Errorf("%w: decay_diminishing_factor must be within [0,1]", ErrInvalidConfig)
	case c.DeltaCap < 0:
		return fmt.Errorf("%w: delta_cap must not be negative", ErrInvalidConfig)
	case c.TieEpsilon < 0:
		return fmt.Errorf("%w: tie_epsilon must not be negative", ErrInvalidConfig)
	}
	if err := c.Tiers.Validate(); err != nil {
		return fmt.Errorf("%w: tiers: %v", ErrInvalidConfig, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return nil
}
