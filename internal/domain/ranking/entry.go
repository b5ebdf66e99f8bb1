package ranking

import (
	"math"
	"strconv"
	"time"

	"github.com/okian/toolrank/internal/domain/factor"
	"github.com/okian/toolrank/internal/domain/movement"
	"github.com/okian/toolrank/internal/domain/tiebreak"
	"github.com/okian/toolrank/internal/domain/tier"
)

// Entry is one tool's result within a period. Entries are never edited once
// the period is finalized; a recompute replaces the whole period.
type Entry struct {
	ToolID   string `json:"tool_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Position int    `json:"position"`
	// Overall is BaselineOverall + DeltaOverall.
	Overall         float64         `json:"overall_score"`
	BaselineOverall float64         `json:"baseline_overall"`
	DeltaOverall    float64         `json:"delta_overall"`
	Tier            tier.Tier       `json:"tier"`
	Factors         factor.ScoreSet `json:"factor_scores"`
	DeltaFactors    factor.ScoreSet `json:"delta_factors,omitempty"`
	Tiebreakers     tiebreak.Keys   `json:"tiebreakers"`
	Movement        movement.Info   `json:"movement"`
	Version         string          `json:"algorithm_version"`
}

// Placement returns the entry's position for movement diffing.
func (e Entry) Placement() movement.Placement {
	return movement.Placement{ToolID: e.ToolID, Position: e.Position}
}

// Period is a complete ordered ranking snapshot.
type Period struct {
	ID      string          `json:"id"`
	Version string          `json:"algorithm_version"`
	AsOf    time.Time       `json:"as_of"`
	Entries []Entry         `json:"entries"`
	Dropped []movement.Info `json:"dropped,omitempty"`
}

// Placements lists every entry's position in order.
func (p *Period) Placements() []movement.Placement {
	out := make([]movement.Placement, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.Placement()
	}
	return out
}

// Find returns the entry for id.
func (p *Period) Find(id string) (Entry, bool) {
	for _, e := range p.Entries {
		if e.ToolID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Audit kinds beyond the model's data-quality issue kinds.
const (
	AuditFactorClamp    = "factor_clamp"
	AuditDeltaClamp     = "delta_clamp"
	AuditEvaluatorPanic = "evaluator_panic"
)

// Audit is one non-fatal finding produced while scoring.
type Audit struct {
	ToolID string      `json:"tool_id"`
	Kind   string      `json:"kind"`
	Factor factor.Name `json:"factor,omitempty"`
	Field  string      `json:"field,omitempty"`
	Detail string      `json:"detail,omitempty"`
	Raw    float64     `json:"raw,omitempty"`
}

// Encodable moves a non-finite Raw into Detail, since JSON has no Inf or NaN.
func (a Audit) Encodable() Audit {
	if !math.IsNaN(a.Raw) && !math.IsInf(a.Raw, 0) {
		return a
	}
	raw := "raw " + strconv.FormatFloat(a.Raw, 'g', -1, 64)
	if a.Detail == "" {
		a.Detail = raw
	} else {
		a.Detail += "; " + raw
	}
	a.Raw = 0
	return a
}
