// Package delta composes a tool's current score from a frozen baseline and an
// accumulated, bounded delta.
//
// Current is never stored on its own: it is always recomposed from the two
// parts, and its overall value is defined as baseline overall plus delta
// overall.
package delta

import (
	"math"
	"time"

	"github.com/okian/toolrank/internal/domain/algorithm"
	"github.com/okian/toolrank/internal/domain/factor"
)

// Baseline is the frozen full-pass score of one tool for an epoch.
// Fingerprint identifies the metrics snapshot it was computed from.
type Baseline struct {
	Version     string          `json:"version"`
	Factors     factor.ScoreSet `json:"factors"`
	Overall     float64         `json:"overall"`
	FrozenAt    time.Time       `json:"frozen_at"`
	Fingerprint string          `json:"fingerprint,omitempty"`
}

// Delta is the signed adjustment accumulated on top of a baseline.
type Delta struct {
	Factors factor.ScoreSet `json:"factors"`
	Overall float64         `json:"overall"`
	Events  int             `json:"events"`
}

// Current is baseline plus delta.
type Current struct {
	Factors factor.ScoreSet `json:"factors"`
	Overall float64         `json:"overall"`
}

// Clamp records a factor whose requested cumulative delta was cut back.
type Clamp struct {
	Factor    factor.Name `json:"factor"`
	Requested float64     `json:"requested"`
	Applied   float64     `json:"applied"`
}

// Composer applies deltas with a cap used when the version has none.
type Composer struct {
	DefaultCap float64
}

// NewComposer returns a composer whose fallback cap is defaultCap, or
// algorithm.DefaultDeltaCap when defaultCap is not positive.
func NewComposer(defaultCap float64) Composer {
	if defaultCap <= 0 || math.IsNaN(defaultCap) {
		defaultCap = algorithm.DefaultDeltaCap
	}
	return Composer{DefaultCap: defaultCap}
}

func (c Composer) capFor(v algorithm.Version) float64 {
	if v.DeltaCap > 0 {
		return v.DeltaCap
	}
	if c.DefaultCap > 0 {
		return c.DefaultCap
	}
	return algorithm.DefaultDeltaCap
}

// FreezeBaseline snapshots evaluated scores under v. Only v's factors are
// kept, each bounded to [0,100].
func FreezeBaseline(scores factor.ScoreSet, v algorithm.Version, at time.Time) Baseline {
	fs := make(factor.ScoreSet, len(v.Factors))
	for _, f := range v.Factors {
		fs[f] = factor.Clamp(scores[f], factor.MinScore, factor.MaxScore)
	}
	overall := algorithm.Aggregate(fs, v)
	// normalized weights leave only rounding above the max
	if overall > factor.MaxScore {
		overall = factor.MaxScore
	}
	return Baseline{
		Version:  v.ID,
		Factors:  fs,
		Overall:  overall,
		FrozenAt: at.UTC(),
	}
}

// Empty returns a zero delta over v's factors.
func Empty(v algorithm.Version) Delta {
	fs := make(factor.ScoreSet, len(v.Factors))
	for _, f := range v.Factors {
		fs[f] = 0
	}
	return Delta{Factors: fs}
}

// ApplyDelta adds adj to existing and bounds every factor's cumulative delta
// to [-cap, cap] intersected with the baseline's headroom
// [-baseline_f, 100-baseline_f]. Adjustments to factors outside v are
// ignored. The returned clamps list every factor that was cut back.
func (c Composer) ApplyDelta(v algorithm.Version, b Baseline, existing Delta, adj factor.ScoreSet) (Delta, []Clamp) {
	limit := c.capFor(v)
	out := Delta{Factors: make(factor.ScoreSet, len(v.Factors)), Events: existing.Events}
	var clamps []Clamp
	for _, f := range v.Factors {
		want := existing.Factors[f]
		if a := adj[f]; !math.IsNaN(a) && !math.IsInf(a, 0) {
			want += a
		}
		base := b.Factors[f]
		lo := math.Max(-limit, factor.MinScore-base)
		hi := math.Min(limit, factor.MaxScore-base)
		got := factor.Clamp(want, lo, hi)
		// 100-base can round up; step back until the sum fits
		for base+got > factor.MaxScore {
			got = math.Nextafter(got, math.Inf(-1))
		}
		if got != want {
			clamps = append(clamps, Clamp{Factor: f, Requested: want, Applied: got})
		}
		out.Factors[f] = got
	}
	out.Overall = fitOverall(b.Overall, algorithm.Aggregate(out.Factors, v))
	return out, clamps
}

// fitOverall trims a delta overall whose sum with base leaves [0,100] through
// rounding alone, keeping base+delta the exact current overall.
func fitOverall(base, d float64) float64 {
	switch {
	case base+d > factor.MaxScore:
		d = factor.MaxScore - base
		for base+d > factor.MaxScore {
			d = math.Nextafter(d, math.Inf(-1))
		}
	case base+d < factor.MinScore:
		d = factor.MinScore - base
		for base+d < factor.MinScore {
			d = math.Nextafter(d, math.Inf(1))
		}
	}
	return d
}

// ApplyDelta uses the default composer.
func ApplyDelta(v algorithm.Version, b Baseline, existing Delta, adj factor.ScoreSet) (Delta, []Clamp) {
	return NewComposer(0).ApplyDelta(v, b, existing, adj)
}

// Compose returns baseline + delta.
func Compose(b Baseline, d Delta) Current {
	return Current{
		Factors: b.Factors.Plus(d.Factors),
		Overall: b.Overall + d.Overall,
	}
}

// State is everything persisted per tool so incremental passes can resume
// from the delta.
type State struct {
	ToolID    string    `json:"tool_id"`
	Baseline  Baseline  `json:"baseline"`
	Delta     Delta     `json:"delta"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Current recomposes the state's current score.
func (s State) Current() Current {
	return Compose(s.Baseline, s.Delta)
}

// Apply folds one adjustment into the state and counts it as an event.
func (s State) Apply(c Composer, v algorithm.Version, adj factor.ScoreSet, at time.Time) (State, []Clamp) {
	d, clamps := c.ApplyDelta(v, s.Baseline, s.Delta, adj)
	d.Events = s.Delta.Events + 1
	s.Delta = d
	s.UpdatedAt = at.UTC()
	return s, clamps
}
