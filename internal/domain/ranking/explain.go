package ranking

import (
	"cmp"
	"slices"

	"github.com/okian/toolrank/internal/domain/algorithm"
	"github.com/okian/toolrank/internal/domain/factor"
	"github.com/okian/toolrank/internal/domain/movement"
	"github.com/okian/toolrank/internal/domain/tiebreak"
	"github.com/okian/toolrank/internal/domain/tier"
)

// Explanation reconstructs why an entry has its score.
type Explanation struct {
	ToolID          string                   `json:"tool_id"`
	Version         string                   `json:"algorithm_version"`
	Position        int                      `json:"position"`
	Tier            tier.Tier                `json:"tier"`
	Overall         float64                  `json:"overall_score"`
	BaselineOverall float64                  `json:"baseline_overall"`
	DeltaOverall    float64                  `json:"delta_overall"`
	Contributions   []algorithm.Contribution `json:"contributions"`
	Top             []algorithm.Contribution `json:"top_contributors"`
	DeltaFactors    factor.ScoreSet          `json:"delta_factors,omitempty"`
	Tiebreakers     tiebreak.Keys            `json:"tiebreakers"`
	Movement        movement.Info            `json:"movement"`
}

// TopContributors is how many factors Explain highlights.
const TopContributors = 3

// Explain breaks an entry's current score into weight × score terms under v.
func Explain(e Entry, v algorithm.Version) Explanation {
	contrib := algorithm.Breakdown(e.Factors, v)
	top := slices.Clone(contrib)
	slices.SortStableFunc(top, func(a, b algorithm.Contribution) int {
		if c := cmp.Compare(b.Contribution, a.Contribution); c != 0 {
			return c
		}
		return cmp.Compare(a.Factor, b.Factor)
	})
	if len(top) > TopContributors {
		top = top[:TopContributors]
	}
	return Explanation{
		ToolID:          e.ToolID,
		Version:         v.ID,
		Position:        e.Position,
		Tier:            e.Tier,
		Overall:         e.Overall,
		BaselineOverall: e.BaselineOverall,
		DeltaOverall:    e.DeltaOverall,
		Contributions:   contrib,
		Top:             top,
		DeltaFactors:    e.DeltaFactors,
		Tiebreakers:     e.Tiebreakers,
		Movement:        e.Movement,
	}
}
