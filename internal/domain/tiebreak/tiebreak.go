// Package tiebreak orders tools whose overall scores are equal or within an
// epsilon of each other.
package tiebreak

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/okian/toolrank/internal/domain/model"
)

// DefaultEpsilon is the score granularity below which two tools are tied.
const DefaultEpsilon = 0.001

// Keys are the secondary sort values recorded on every ranking entry.
type Keys struct {
	FeatureCount       int               `json:"feature_count"`
	DescriptionQuality float64           `json:"description_quality"`
	Pricing            model.PricingTier `json:"pricing_tier,omitempty"`
	PricingOrdinal     int               `json:"pricing_ordinal"`
	Name               string            `json:"name"`
}

// KeysFor derives the tiebreaker values from a tool snapshot.
func KeysFor(m *model.ToolMetrics) Keys {
	return Keys{
		FeatureCount:       m.FeatureCount(),
		DescriptionQuality: DescriptionQuality(m.Description),
		Pricing:            m.PricingTier,
		PricingOrdinal:     m.PricingTier.Ordinal(),
		Name:               m.DisplayName(),
	}
}

// DescriptionQuality scores a description in [0,100]: up to 60 points for
// length (saturating at 60 words), 30 for lexical variety, 10 for ending on a
// full sentence.
func DescriptionQuality(desc string) float64 {
	words := strings.FieldsFunc(strings.ToLower(desc), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	if len(words) == 0 {
		return 0
	}
	uniq := make(map[string]struct{}, len(words))
	for _, w := range words {
		uniq[w] = struct{}{}
	}
	score := 60 * math.Min(float64(len(words)), 60) / 60
	score += 30 * float64(len(uniq)) / float64(len(words))
	if t := strings.TrimSpace(desc); strings.HasSuffix(t, ".") || strings.HasSuffix(t, "!") {
		score += 10
	}
	// two decimals keeps the stored key stable across platforms
	return math.Round(score*100) / 100
}

// Candidate is one tool waiting to be placed.
type Candidate struct {
	ToolID  string
	Overall float64
	Keys    Keys
}

// Resolver compares candidates. The zero value uses DefaultEpsilon.
//
// Overall scores tie when they round to the same multiple of Epsilon, so the
// buckets are fixed and not relative: with 0.001, scores 0.0004 and 0.0006 are
// only 0.0002 apart but fall on either side of 0.0005 and do not tie, while
// 0.0006 and 0.0014 do.
type Resolver struct {
	Epsilon float64
}

func (r Resolver) bucket(score float64) int64 {
	eps := r.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	if math.IsNaN(score) {
		return math.MinInt64
	}
	return int64(math.Round(score / eps))
}

// Tied reports whether two scores fall into the same epsilon bucket.
func (r Resolver) Tied(a, b float64) bool {
	return r.bucket(a) == r.bucket(b)
}

// Compare returns a negative number when a ranks above b. Order: score
// bucket desc, feature count desc, description quality desc, pricing ordinal
// asc (free first), case-folded name asc, raw name asc, tool id asc.
func (r Resolver) Compare(a, b Candidate) int {
	if c := cmp.Compare(r.bucket(b.Overall), r.bucket(a.Overall)); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Keys.FeatureCount, a.Keys.FeatureCount); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Keys.DescriptionQuality, a.Keys.DescriptionQuality); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Keys.PricingOrdinal, b.Keys.PricingOrdinal); c != 0 {
		return c
	}
	if c := cmp.Compare(strings.ToLower(a.Keys.Name), strings.ToLower(b.Keys.Name)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Keys.Name, b.Keys.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.ToolID, b.ToolID)
}

// Less adapts Compare for ordered containers.
func (r Resolver) Less(a, b Candidate) bool {
	return r.Compare(a, b) < 0
}

// Sort orders cs in place. Tool ids are assumed unique, which makes the
// order total.
func (r Resolver) Sort(cs []Candidate) {
	slices.SortStableFunc(cs, r.Compare)
}
