// Package decay turns dated events into signed per-factor adjustments whose
// weight fades with age.
package decay

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/okian/toolrank/internal/domain/factor"
	"github.com/okian/toolrank/internal/domain/model"
)

const day = 24 * time.Hour

// Config tunes the decay curve and the active window.
type Config struct {
	// HorizonDays excludes events older than this from the window.
	HorizonDays float64
	// Exponent is k in 1 / (1 + (age/365)^k).
	Exponent float64
	// MaxEventsPerType caps how many events of one type count per tool; zero
	// means unlimited.
	MaxEventsPerType int
	// Diminishing multiplies the i-th strongest event of a type by Diminishing^i.
	Diminishing float64
	// Mapping spreads one unit of impact across factors per event type.
	Mapping map[model.EventType]factor.ScoreSet
}

// DefaultMapping is the built-in event type to factor spread.
func DefaultMapping() map[model.EventType]factor.ScoreSet {
	return map[model.EventType]factor.ScoreSet{
		model.EventFunding:     {factor.MarketTraction: 1.0, factor.BusinessSentiment: 0.5},
		model.EventLaunch:      {factor.Innovation: 1.0, factor.DevelopmentVelocity: 0.8},
		model.EventArticle:     {factor.BusinessSentiment: 0.6, factor.DeveloperAdoption: 0.4},
		model.EventBenchmark:   {factor.TechnicalPerformance: 1.0, factor.AgenticCapability: 0.3},
		model.EventPartnership: {factor.PlatformResilience: 0.8, factor.MarketTraction: 0.4},
		model.EventIncident:    {factor.PlatformResilience: 1.0, factor.BusinessSentiment: 0.5},
	}
}

// DefaultConfig: one-year horizon, k=2, five events per type, 0.7 falloff.
func DefaultConfig() Config {
	return Config{
		HorizonDays:      365,
		Exponent:         2,
		MaxEventsPerType: 5,
		Diminishing:      0.7,
		Mapping:          DefaultMapping(),
	}
}

func (c Config) exponent() float64 {
	if c.Exponent > 0 {
		return c.Exponent
	}
	return 2
}

// Factor returns the decay multiplier for an age in days. It is 1 at age zero
// (and for negative ages) and decreasing afterwards, never reaching 0. The
// decrease is strict only above float64 resolution: with the default exponent
// an age under about 0.3 seconds still rounds to exactly 1.
func (c Config) Factor(ageDays float64) float64 {
	if ageDays <= 0 || math.IsNaN(ageDays) {
		return 1
	}
	return 1 / (1 + math.Pow(ageDays/365, c.exponent()))
}

// AgeDays is the fractional age of e at now.
func AgeDays(e model.Event, now time.Time) float64 {
	return float64(now.Sub(e.Timestamp)) / float64(day)
}

// Impact is rawImportance * Factor(age).
func (c Config) Impact(e model.Event, now time.Time) float64 {
	raw := e.RawImportance
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0
	}
	return raw * c.Factor(AgeDays(e, now))
}

// InWindow reports whether e counts at now: not in the future and not past
// the horizon.
func (c Config) InWindow(e model.Event, now time.Time) bool {
	if e.Timestamp.After(now) {
		return false
	}
	return c.HorizonDays <= 0 || AgeDays(e, now) <= c.HorizonDays
}

// Spread maps an impact onto factors for the event type.
func (c Config) Spread(t model.EventType, impact float64) factor.ScoreSet {
	coeffs := c.Mapping[t]
	out := make(factor.ScoreSet, len(coeffs))
	for f, k := range coeffs {
		out[f] = impact * k
	}
	return out
}

// Rank returns the multiplier for the i-th (0-based) strongest event of one
// type; 0 once the per-type count is exhausted.
func (c Config) Rank(i int) float64 {
	if c.MaxEventsPerType > 0 && i >= c.MaxEventsPerType {
		return 0
	}
	d := c.Diminishing
	if d <= 0 || d > 1 {
		d = 1
	}
	return math.Pow(d, float64(i))
}

// Adjustment is the factor spread of a single event at now, discounted as the
// rank-th event of its type. Events outside the window adjust nothing.
func (c Config) Adjustment(e model.Event, now time.Time, rank int) factor.ScoreSet {
	if !c.InWindow(e, now) {
		return factor.ScoreSet{}
	}
	return c.Spread(e.Type, c.Impact(e, now)*c.Rank(rank))
}

// Fold sums every tool's in-window events into one adjustment. Within a tool
// and type, impacts are ordered by magnitude (ties by id) before the count
// cap and diminishing returns apply, so input order never matters.
func (c Config) Fold(events []model.Event, now time.Time) map[string]factor.ScoreSet {
	type key struct {
		tool string
		typ  model.EventType
	}
	type scored struct {
		id     string
		impact float64
	}
	groups := make(map[key][]scored)
	for _, e := range events {
		if e.Validate() != nil || !c.InWindow(e, now) {
			continue
		}
		k := key{e.ToolID, e.Type}
		groups[k] = append(groups[k], scored{id: e.ID, impact: c.Impact(e, now)})
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	// fixed summation order keeps the float result reproducible
	slices.SortFunc(keys, func(a, b key) int {
		if r := cmp.Compare(a.tool, b.tool); r != 0 {
			return r
		}
		return cmp.Compare(a.typ, b.typ)
	})

	out := make(map[string]factor.ScoreSet)
	for _, k := range keys {
		list := groups[k]
		slices.SortFunc(list, func(a, b scored) int {
			if r := cmp.Compare(math.Abs(b.impact), math.Abs(a.impact)); r != 0 {
				return r
			}
			return cmp.Compare(a.id, b.id)
		})
		sum := 0.0
		for i, s := range list {
			sum += s.impact * c.Rank(i)
		}
		acc, ok := out[k.tool]
		if !ok {
			acc = factor.ScoreSet{}
			out[k.tool] = acc
		}
		for f, v := range c.Spread(k.typ, sum) {
			acc[f] += v
		}
	}
	return out
}
