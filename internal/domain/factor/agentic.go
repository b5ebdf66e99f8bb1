package factor

import (
	"time"

	"github.com/okian/toolrank/internal/domain/model"
)

// DefaultAutonomyTerms mark capabilities that let a tool act without a human
// driving every step.
var DefaultAutonomyTerms = []string{
	"autonomous",
	"agent",
	"multi-file",
	"terminal",
	"planning",
	"self-healing",
	"tool use",
	"background",
}

// AgenticEvaluator scores how much work a tool can carry out on its own.
type AgenticEvaluator struct {
	Base         float64
	Terms        []string
	PerTerm      float64
	BenchmarkMul float64
}

// NewAgentic returns the evaluator with the production constants.
func NewAgentic() AgenticEvaluator {
	return AgenticEvaluator{Base: 20, Terms: DefaultAutonomyTerms, PerTerm: 8, BenchmarkMul: 0.3}
}

func (AgenticEvaluator) Factor() Name { return AgenticCapability }

func (e AgenticEvaluator) Evaluate(m *model.ToolMetrics, _ time.Time) Evaluation {
	acc := e.Base
	acc += float64(countTerms(m.SearchText(), e.Terms)) * e.PerTerm

	ctx := num(m.Signals.ContextWindowTokens)
	switch {
	case ctx >= 200_000:
		acc += 10
	case ctx >= 100_000:
		acc += 5
	}
	acc += num(m.Signals.SWEBenchScore) * e.BenchmarkMul

	return finish(AgenticCapability, acc)
}
