// Package factor defines the named scoring factors, the per-factor score set,
// and the evaluators that turn a tool's raw metrics into bounded sub-scores.
//
// Every evaluator accumulates its additive terms into a local, unclamped value
// and clamps exactly once, as its last step, into [MinScore, MaxScore].
package factor

import (
	"math"
	"sort"
)

// Name identifies one scoring factor.
type Name string

const (
	AgenticCapability    Name = "agentic_capability"
	Innovation           Name = "innovation"
	TechnicalPerformance Name = "technical_performance"
	DeveloperAdoption    Name = "developer_adoption"
	MarketTraction       Name = "market_traction"
	BusinessSentiment    Name = "business_sentiment"
	DevelopmentVelocity  Name = "development_velocity"
	PlatformResilience   Name = "platform_resilience"
)

// Score bounds for every factor sub-score.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// All lists every known factor in canonical order.
var All = []Name{
	AgenticCapability,
	Innovation,
	TechnicalPerformance,
	DeveloperAdoption,
	MarketTraction,
	BusinessSentiment,
	DevelopmentVelocity,
	PlatformResilience,
}

// Known reports whether n is a factor with an evaluator.
func Known(n Name) bool {
	for _, k := range All {
		if k == n {
			return true
		}
	}
	return false
}

// ScoreSet holds one value per factor. It is used for evaluated sub-scores
// (always in [0,100]) and for signed delta adjustments alike.
type ScoreSet map[Name]float64

// Get returns the value for n, zero when absent.
func (s ScoreSet) Get(n Name) float64 {
	return s[n]
}

// Clone returns an independent copy.
func (s ScoreSet) Clone() ScoreSet {
	out := make(ScoreSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Plus returns s + o factor by factor over the union of keys.
func (s ScoreSet) Plus(o ScoreSet) ScoreSet {
	out := s.Clone()
	for k, v := range o {
		out[k] += v
	}
	return out
}

// Scale returns every value multiplied by f.
func (s ScoreSet) Scale(f float64) ScoreSet {
	out := make(ScoreSet, len(s))
	for k, v := range s {
		out[k] = v * f
	}
	return out
}

// Names returns the keys sorted lexically.
func (s ScoreSet) Names() []Name {
	out := make([]Name, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InRange reports whether every value lies within [MinScore, MaxScore].
func (s ScoreSet) InRange() bool {
	for _, v := range s {
		if math.IsNaN(v) || v < MinScore || v > MaxScore {
			return false
		}
	}
	return true
}

// Clamp bounds v into [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
