package factor

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/toolrank/internal/domain/model"
)

// Evaluator maps a tool's metrics to one bounded sub-score. Implementations
// are pure: the only time input is asOf, supplied by the scoring pass.
type Evaluator interface {
	Factor() Name
	Evaluate(m *model.ToolMetrics, asOf time.Time) Evaluation
}

// Evaluation is an evaluator's output. Score is always within [0,100];
// Raw is the accumulator before the final clamp, kept for auditing.
type Evaluation struct {
	Factor Name    `json:"factor"`
	Score  float64 `json:"score"`
	Raw    float64 `json:"raw"`
}

// Clamped reports whether the final clamp changed the accumulator.
func (e Evaluation) Clamped() bool {
	return e.Raw != e.Score
}

// finish is the single exit point of every evaluator.
func finish(n Name, acc float64) Evaluation {
	return Evaluation{Factor: n, Score: Clamp(acc, MinScore, MaxScore), Raw: acc}
}

// Catalog is a set of evaluators keyed by factor.
type Catalog map[Name]Evaluator

// DefaultCatalog returns the built-in evaluator for every factor in All.
func DefaultCatalog() Catalog {
	return Catalog{
		AgenticCapability:    NewAgentic(),
		Innovation:           NewInnovation(),
		TechnicalPerformance: TechnicalPerformanceEvaluator{},
		DeveloperAdoption:    DeveloperAdoptionEvaluator{},
		MarketTraction:       MarketTractionEvaluator{},
		BusinessSentiment:    BusinessSentimentEvaluator{},
		DevelopmentVelocity:  DevelopmentVelocityEvaluator{},
		PlatformResilience:   PlatformResilienceEvaluator{},
	}
}

// With returns a copy of c with e replacing the evaluator for its factor.
func (c Catalog) With(e Evaluator) Catalog {
	out := make(Catalog, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	out[e.Factor()] = e
	return out
}

// Lookup returns the evaluator for n.
func (c Catalog) Lookup(n Name) (Evaluator, error) {
	e, ok := c[n]
	if !ok {
		return nil, fmt.Errorf("no evaluator for factor %q", n)
	}
	return e, nil
}

// num treats NaN, Inf and negative values as missing.
func num(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// logScale maps log10(v) linearly from [lo, hi] onto [0, 100]. Values at or
// below 10^lo score 0; values above 10^hi overshoot and are left to the
// evaluator's final clamp.
func logScale(v, lo, hi float64) float64 {
	v = num(v)
	if v <= 0 || hi <= lo {
		return 0
	}
	s := (math.Log10(v) - lo) / (hi - lo) * 100
	if s < 0 {
		return 0
	}
	return s
}

// countTerms counts how many vocabulary terms occur in text.
func countTerms(text string, vocab []string) int {
	n := 0
	for _, t := range vocab {
		if t != "" && strings.Contains(text, t) {
			n++
		}
	}
	return n
}

// ageYears returns whole years since launch, or -1 when unknown.
func ageYears(m *model.ToolMetrics, asOf time.Time) int {
	if m.LaunchYear <= 0 {
		return -1
	}
	return asOf.Year() - m.LaunchYear
}
