package service

import (
	"time"

	"github.com/okian/toolrank/internal/adapters/snapshot"
	"github.com/okian/toolrank/internal/domain/algorithm"
	"github.com/okian/toolrank/internal/domain/decay"
	"github.com/okian/toolrank/internal/domain/tier"
	"github.com/okian/toolrank/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of event workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many event ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithScoringWorkers bounds the fan-out of a scoring pass.
func WithScoringWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.scoringWorkers = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDBPath sets the SQLite database; repository.MemoryPath keeps it in process.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithSnapshotSource sets where period close reads tool metrics from.
func WithSnapshotSource(src snapshot.Source) Option {
	return func(s *Service) {
		s.source = src
	}
}

// WithRegistry replaces the built-in algorithm registry.
func WithRegistry(r *algorithm.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithActiveAlgorithm selects the version new periods are scored with.
func WithActiveAlgorithm(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.activeVersion = id
		}
	}
}

// WithGranularity sets week or month periods.
func WithGranularity(g string) Option {
	return func(s *Service) {
		if g == GranularityWeek || g == GranularityMonth {
			s.granularity = g
		}
	}
}

// WithDecay replaces the event decay settings.
func WithDecay(c decay.Config) Option {
	return func(s *Service) {
		if c.Mapping == nil {
			c.Mapping = decay.DefaultMapping()
		}
		s.decay = c
	}
}

// WithDeltaCap sets the delta bound for versions without their own.
func WithDeltaCap(c float64) Option {
	return func(s *Service) {
		if c > 0 {
			s.deltaCap = c
		}
	}
}

// WithEpsilon sets the score granularity below which tools tie.
func WithEpsilon(eps float64) Option {
	return func(s *Service) {
		if eps > 0 {
			s.epsilon = eps
		}
	}
}

// WithTierPolicy sets the position cutoffs for tiers. An invalid policy is
// ignored.
func WithTierPolicy(p tier.Policy) Option {
	return func(s *Service) {
		if p.Validate() == nil {
			s.tiers = p.Clone()
		}
	}
}

// WithTopCacheSize sets how many leading standings the published read view
// keeps.
func WithTopCacheSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topCacheSize = n
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for workers to drain.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithClock overrides the wall clock used by the live path.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}
