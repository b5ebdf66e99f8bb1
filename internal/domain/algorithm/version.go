// Package algorithm holds the versioned scoring formulas: which factors a
// version uses, how they are weighted, and how far deltas may move them.
package algorithm

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/toolrank/internal/domain/factor"
)

// WeightTolerance is the allowed deviation of a version's weight sum from 1,
// inclusive. weightSlack absorbs binary rounding at exactly the boundary.
const (
	WeightTolerance = 1e-6
	weightSlack     = 1e-12
)

// DefaultDeltaCap bounds each factor's cumulative delta when a version does
// not set its own.
const DefaultDeltaCap = 30.0

// Version is an immutable named scoring configuration.
type Version struct {
	ID      string                  `json:"id" koanf:"id"`
	Factors []factor.Name           `json:"factors" koanf:"factors"`
	Weights map[factor.Name]float64 `json:"weights" koanf:"weights"`
	// DeltaCap bounds |delta| per factor; zero means DefaultDeltaCap.
	DeltaCap float64 `json:"delta_cap,omitempty" koanf:"delta_cap"`
}

// Weight returns the weight for n, zero when the version does not use n.
func (v Version) Weight(n factor.Name) float64 {
	return v.Weights[n]
}

// Cap returns the effective per-factor delta bound.
func (v Version) Cap() float64 {
	if v.DeltaCap > 0 {
		return v.DeltaCap
	}
	return DefaultDeltaCap
}

// WeightSum adds every listed factor's weight.
func (v Version) WeightSum() float64 {
	sum := 0.0
	for _, f := range v.Factors {
		sum += v.Weights[f]
	}
	return sum
}

// Clone returns a deep copy so callers can never reach registry state.
func (v Version) Clone() Version {
	out := Version{ID: v.ID, DeltaCap: v.DeltaCap}
	out.Factors = append([]factor.Name(nil), v.Factors...)
	out.Weights = make(map[factor.Name]float64, len(v.Weights))
	for k, w := range v.Weights {
		out.Weights[k] = w
	}
	return out
}

// Normalized returns a copy whose weights are divided by their sum, so a
// version accepted within WeightTolerance weighs exactly one unit. The
// tolerance check in Validate applies to the weights as declared.
func (v Version) Normalized() Version {
	out := v.Clone()
	sum := v.WeightSum()
	if sum <= 0 || sum == 1 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return out
	}
	for _, f := range out.Factors {
		out.Weights[f] /= sum
	}
	return out
}

// Validate checks the factor list and weights. known reports whether a factor
// has an evaluator; nil means factor.Known.
func (v Version) Validate(known func(factor.Name) bool) error {
	if known == nil {
		known = factor.Known
	}
	if strings.TrimSpace(v.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidVersion)
	}
	if len(v.Factors) == 0 {
		return fmt.Errorf("%w: %s has no factors", ErrInvalidVersion, v.ID)
	}
	if v.DeltaCap < 0 || math.IsNaN(v.DeltaCap) {
		return fmt.Errorf("%w: %s has negative delta cap", ErrInvalidVersion, v.ID)
	}
	seen := make(map[factor.Name]bool, len(v.Factors))
	for _, f := range v.Factors {
		if !known(f) {
			return fmt.Errorf("%w: %s references %q", ErrUnknownFactor, v.ID, f)
		}
		if seen[f] {
			return fmt.Errorf("%w: %s lists %q twice", ErrInvalidVersion, v.ID, f)
		}
		seen[f] = true
		w, ok := v.Weights[f]
		if !ok {
			return fmt.Errorf("%w: %s has no weight for %q", ErrInvalidVersion, v.ID, f)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: %s weight for %q is %v", ErrInvalidVersion, v.ID, f, w)
		}
	}
	for f := range v.Weights {
		if !seen[f] {
			return fmt.Errorf("%w: %s weights %q which is not in its factor list", ErrUnknownFactor, v.ID, f)
		}
	}
	if sum := v.WeightSum(); math.Abs(sum-1) > WeightTolerance+weightSlack {
		return fmt.Errorf("%w: %s sums to %.6f", ErrWeightSum, v.ID, sum)
	}
	return nil
}

// Aggregate combines factor scores into one overall score:
// sum(scores[f] * weight[f]) over the version's factors, in list order.
// The result is not re-clamped; bounded inputs and normalized weights keep
// it in [0,100] up to float rounding, which the delta composer absorbs.
// Signed delta sets aggregate the same way.
func Aggregate(scores factor.ScoreSet, v Version) float64 {
	total := 0.0
	for _, f := range v.Factors {
		total += scores[f] * v.Weights[f]
	}
	return total
}

// Contribution is one factor's share of an overall score.
type Contribution struct {
	Factor       factor.Name `json:"factor"`
	Score        float64     `json:"score"`
	Weight       float64     `json:"weight"`
	Contribution float64     `json:"contribution"`
}

// Breakdown explains Aggregate term by term in the version's factor order.
func Breakdown(scores factor.ScoreSet, v Version) []Contribution {
	out := make([]Contribution, 0, len(v.Factors))
	for _, f := range v.Factors {
		s, w := scores[f], v.Weights[f]
		out = append(out, Contribution{Factor: f, Score: s, Weight: w, Contribution: s * w})
	}
	return out
}
