// Package tier maps a final sorted position to a tier label.
//
// Boundaries are absolute position cutoffs, not percentiles, so the size of
// each tier does not depend on how many tools are ranked.
package tier

import (
	"fmt"
	"sort"
)

// Tier is a discrete ranking band.
type Tier string

const (
	S Tier = "S"
	A Tier = "A"
	B Tier = "B"
	C Tier = "C"
	D Tier = "D"

	// Unranked is returned for positions outside 1..total.
	Unranked Tier = ""
)

// Boundary assigns Tier to every position up to and including MaxPosition.
type Boundary struct {
	Tier        Tier `koanf:"tier"`
	MaxPosition int  `koanf:"max_position"`
}

// Policy is an ordered list of boundaries; positions past the last one fall
// into Rest.
type Policy struct {
	Boundaries []Boundary `koanf:"boundaries"`
	Rest       Tier       `koanf:"rest"`
}

// DefaultPolicy: top 5 S, 6-15 A, 16-25 B, 26-35 C, the remainder D.
var DefaultPolicy = Policy{
	Boundaries: []Boundary{
		{Tier: S, MaxPosition: 5},
		{Tier: A, MaxPosition: 15},
		{Tier: B, MaxPosition: 25},
		{Tier: C, MaxPosition: 35},
	},
	Rest: D,
}

// Clone returns a copy that does not share the boundary slice.
func (p Policy) Clone() Policy {
	return Policy{Boundaries: append([]Boundary(nil), p.Boundaries...), Rest: p.Rest}
}

// Validate requires strictly increasing positive cutoffs.
func (p Policy) Validate() error {
	prev := 0
	for _, b := range p.Boundaries {
		if b.MaxPosition <= prev {
			return fmt.Errorf("tier %s: cutoff %d must be greater than %d", b.Tier, b.MaxPosition, prev)
		}
		prev = b.MaxPosition
	}
	if p.Rest == Unranked {
		return fmt.Errorf("tier policy needs a tier for the remainder")
	}
	return nil
}

// Classify returns the tier for a 1-based position among total tools.
func (p Policy) Classify(position, total int) Tier {
	if position < 1 || (total > 0 && position > total) {
		return Unranked
	}
	i := sort.Search(len(p.Boundaries), func(i int) bool {
		return position <= p.Boundaries[i].MaxPosition
	})
	if i < len(p.Boundaries) {
		return p.Boundaries[i].Tier
	}
	return p.Rest
}

// Classify applies DefaultPolicy.
func Classify(position, total int) Tier {
	return DefaultPolicy.Classify(position, total)
}
