// Package movement compares two consecutive ranking periods.
package movement

import (
	"cmp"
	"slices"
)

// Class labels how a tool moved between periods.
type Class string

const (
	Up        Class = "up"
	Down      Class = "down"
	Same      Class = "same"
	New       Class = "new"
	Returning Class = "returning"
	Dropped   Class = "dropped"
)

// Placement is a tool's 1-based position within one period.
type Placement struct {
	ToolID   string
	Position int
}

// Info is the movement record for one tool. Change is previous minus current
// position (positive means up) and is set only when the tool was in the
// immediately preceding period and is still ranked.
type Info struct {
	ToolID           string `json:"tool_id"`
	Position         int    `json:"position,omitempty"`
	PreviousPosition int    `json:"previous_position,omitempty"`
	Change           *int   `json:"position_change,omitempty"`
	Class            Class  `json:"class"`
}

type options struct {
	history map[string]int
}

// Option configures Diff.
type Option func(*options)

// WithHistory supplies last-known positions from periods before the
// previous one. A tool missing from the previous period but present here is
// classified as returning instead of new.
func WithHistory(lastKnown map[string]int) Option {
	return func(o *options) {
		o.history = lastKnown
	}
}

// Diff classifies every tool in current against previous. An empty previous
// (the first period) makes every entry new. Tools that disappeared are
// appended as dropped records, ordered by their previous position.
func Diff(current, previous []Placement, opts ...Option) []Info {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	prev := make(map[string]int, len(previous))
	for _, p := range previous {
		prev[p.ToolID] = p.Position
	}
	cur := slices.Clone(current)
	slices.SortFunc(cur, byPosition)

	out := make([]Info, 0, len(cur)+len(previous))
	seen := make(map[string]bool, len(cur))
	for _, c := range cur {
		seen[c.ToolID] = true
		info := Info{ToolID: c.ToolID, Position: c.Position}
		if pp, ok := prev[c.ToolID]; ok {
			change := pp - c.Position
			info.PreviousPosition = pp
			info.Change = &change
			info.Class = classify(change)
		} else if last, ok := o.history[c.ToolID]; ok && len(previous) > 0 {
			info.PreviousPosition = last
			info.Class = Returning
		} else {
			info.Class = New
		}
		out = append(out, info)
	}

	gone := make([]Placement, 0)
	for _, p := range previous {
		if !seen[p.ToolID] {
			gone = append(gone, p)
		}
	}
	slices.SortFunc(gone, byPosition)
	for _, p := range gone {
		out = append(out, Info{ToolID: p.ToolID, PreviousPosition: p.Position, Class: Dropped})
	}
	return out
}

func classify(change int) Class {
	switch {
	case change > 0:
		return Up
	case change < 0:
		return Down
	default:
		return Same
	}
}

func byPosition(a, b Placement) int {
	if c := cmp.Compare(a.Position, b.Position); c != 0 {
		return c
	}
	return cmp.Compare(a.ToolID, b.ToolID)
}

// Counts tallies movements by class.
func Counts(infos []Info) map[Class]int {
	out := make(map[Class]int)
	for _, i := range infos {
		out[i.Class]++
	}
	return out
}
