package repository

import (
	"time"

	"github.com/okian/toolrank/internal/domain/tier"
)

// Option applies a configuration option to the Standings index.
type Option func(*Standings)

// WithSnapshotInterval sets how often the read snapshot is republished.
func WithSnapshotInterval(interval time.Duration) Option {
	return func(s *Standings) {
		if interval > 0 {
			s.snapshotInterval = interval
		}
	}
}

// WithTopCacheSize sets how many leading rows the snapshot keeps.
func WithTopCacheSize(n int) Option {
	return func(s *Standings) {
		if n > 0 {
			s.topCacheSize = n
		}
	}
}

// WithEpsilon sets the tie granularity of the ordering.
func WithEpsilon(eps float64) Option {
	return func(s *Standings) {
		if eps > 0 {
			s.resolver.Epsilon = eps
		}
	}
}

// WithTierPolicy sets the cutoffs used to label live positions.
func WithTierPolicy(p tier.Policy) Option {
	return func(s *Standings) {
		s.policy = p
	}
}

type saveOptions struct {
	replace bool
}

// SaveOption configures SavePeriod.
type SaveOption func(*saveOptions)

// WithReplace lets a recompute overwrite an existing period in place.
func WithReplace() SaveOption {
	return func(o *saveOptions) { o.replace = true }
}
