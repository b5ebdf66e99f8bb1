package factor

import (
	"time"

	"github.com/okian/toolrank/internal/domain/model"
)

// TechnicalPerformanceEvaluator blends public benchmarks with context size.
type TechnicalPerformanceEvaluator struct{}

func (TechnicalPerformanceEvaluator) Factor() Name { return TechnicalPerformance }

func (TechnicalPerformanceEvaluator) Evaluate(m *model.ToolMetrics, _ time.Time) Evaluation {
	s := m.Signals
	acc := 0.5*num(s.SWEBenchScore) +
		0.3*num(s.HumanEvalScore) +
		0.2*logScale(s.ContextWindowTokens, 3, 6) // 1k tokens -> 0, 1M -> 100
	return finish(TechnicalPerformance, acc)
}

// DeveloperAdoptionEvaluator scores community size on log scales.
type DeveloperAdoptionEvaluator struct{}

func (DeveloperAdoptionEvaluator) Factor() Name { return DeveloperAdoption }

func (DeveloperAdoptionEvaluator) Evaluate(m *model.ToolMetrics, _ time.Time) Evaluation {
	s := m.Signals
	acc := 0.40*logScale(s.Users, 2, 7) + // 100 users -> 0, 10M -> 100
		0.35*logScale(s.GitHubStars, 1, 5.3) +
		0.25*logScale(s.MonthlyDownloads, 2, 7)
	return finish(DeveloperAdoption, acc)
}

// MarketTractionEvaluator scores capital and revenue on log scales.
type MarketTractionEvaluator struct{}

func (MarketTractionEvaluator) Factor() Name { return MarketTraction }

func (MarketTractionEvaluator) Evaluate(m *model.ToolMetrics, _ time.Time) Evaluation {
	s := m.Signals
	acc := 0.45*logScale(s.FundingUSD, 5, 9.7) + // $100k -> 0, $5B -> 100
		0.35*logScale(s.AnnualRevenueUSD, 5, 9) +
		0.20*logScale(s.ValuationUSD, 6, 11)
	return finish(MarketTraction, acc)
}

// BusinessSentimentEvaluator maps sentiment in [-1,1] onto [0,100] around a
// neutral 50, with a small bonus once the tool reports paying customers.
type BusinessSentimentEvaluator struct{}

func (BusinessSentimentEvaluator) Factor() Name { return BusinessSentiment }

func (BusinessSentimentEvaluator) Evaluate(m *model.ToolMetrics, _ time.Time) Evaluation {
	s := m.Signals
	if s.Sentiment == nil {
		return finish(BusinessSentiment, 0)
	}
	v := *s.Sentiment
	if v != v { // NaN
		v = 0
	}
	acc := 50 + 50*v
	if num(s.AnnualRevenueUSD) > 0 {
		acc += 5
	}
	return finish(BusinessSentiment, acc)
}

// DevelopmentVelocityEvaluator rewards frequent, recent shipping.
type DevelopmentVelocityEvaluator struct{}

func (DevelopmentVelocityEvaluator) Factor() Name { return DevelopmentVelocity }

func (DevelopmentVelocityEvaluator) Evaluate(m *model.ToolMetrics, asOf time.Time) Evaluation {
	s := m.Signals
	acc := 6*num(s.ReleasesLast90Days) + 0.4*logScale(s.CommitsLast30Days, 0, 3)

	if !s.LastReleaseAt.IsZero() && !s.LastReleaseAt.After(asOf) {
		days := asOf.Sub(s.LastReleaseAt).Hours() / 24
		switch {
		case days <= 30:
			acc += 20
		case days <= 90:
			acc += 10
		case days <= 180:
			acc += 5
		}
	}
	return finish(DevelopmentVelocity, acc)
}

// PlatformResilienceEvaluator scores reliability and lock-in resistance.
type PlatformResilienceEvaluator struct{}

func (PlatformResilienceEvaluator) Factor() Name { return PlatformResilience }

func (PlatformResilienceEvaluator) Evaluate(m *model.ToolMetrics, asOf time.Time) Evaluation {
	s := m.Signals
	acc := 0.0
	if up := num(s.UptimePercent); up > 90 {
		acc += (up - 90) * 4
	}
	acc += 1.5 * num(s.IntegrationCount)
	if s.SelfHostable {
		acc += 10
	}
	if s.MultiModelSupport {
		acc += 10
	}
	if age := ageYears(m, asOf); age > 0 {
		acc += 3 * float64(age)
	}
	return finish(PlatformResilience, acc)
}
