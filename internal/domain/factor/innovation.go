package factor

import (
	"time"

	"github.com/okian/toolrank/internal/domain/model"
)

// DefaultInnovationKeywords is the fixed vocabulary rewarded by the
// innovation evaluator.
var DefaultInnovationKeywords = []string{
	"agentic",
	"autonomous",
	"multi-agent",
	"ai-native",
	"code generation",
	"natural language",
	"self-healing",
	"reasoning",
	"mcp",
	"background agent",
	"voice",
	"real-time collaboration",
	"codebase indexing",
	"semantic search",
}

// InnovationEvaluator scores novelty. The keyword bonus is coarse and easy to
// game, so the vocabulary and point values are fields rather than constants.
type InnovationEvaluator struct {
	Base            float64
	PerFeature      float64
	FeatureCap      float64
	Keywords        []string
	PerKeyword      float64
	HugeContext     float64 // >= 1M tokens
	StrongBenchmark float64 // SWE-bench >= 60
	Multimodal      float64
	OpenSource      float64
}

// NewInnovation returns the evaluator with the production constants.
func NewInnovation() InnovationEvaluator {
	return InnovationEvaluator{
		Base:            30,
		PerFeature:      2,
		FeatureCap:      20,
		Keywords:        DefaultInnovationKeywords,
		PerKeyword:      5,
		HugeContext:     10,
		StrongBenchmark: 8,
		Multimodal:      5,
		OpenSource:      5,
	}
}

func (InnovationEvaluator) Factor() Name { return Innovation }

func (e InnovationEvaluator) Evaluate(m *model.ToolMetrics, asOf time.Time) Evaluation {
	acc := e.Base

	features := float64(m.FeatureCount()) * e.PerFeature
	if features > e.FeatureCap {
		features = e.FeatureCap
	}
	acc += features

	acc += float64(countTerms(m.SearchText(), e.Keywords)) * e.PerKeyword

	s := m.Signals
	if num(s.ContextWindowTokens) >= 1_000_000 {
		acc += e.HugeContext
	}
	if num(s.SWEBenchScore) >= 60 {
		acc += e.StrongBenchmark
	}
	if s.Multimodal {
		acc += e.Multimodal
	}
	if s.OpenSource {
		acc += e.OpenSource
	}

	acc += MaturityBonus(ageYears(m, asOf))

	return finish(Innovation, acc)
}

// MaturityBonus peaks for tools one to three years old: 8 under a year, 15
// from one to three years, then 3 less per additional year down to 0.
// Unknown or future launches (age < 0) earn nothing.
func MaturityBonus(age int) float64 {
	switch {
	case age < 0:
		return 0
	case age < 1:
		return 8
	case age <= 3:
		return 15
	}
	b := 15 - 3*float64(age-3)
	if b < 0 {
		return 0
	}
	return b
}
