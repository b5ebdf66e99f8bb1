// Package repository persists finalized ranking periods and score states, and
// keeps the live in-memory standings.
package repository

import (
	"context"
	"time"

	"github.com/okian/toolrank/internal/domain/delta"
	"github.com/okian/toolrank/internal/domain/model"
	"github.com/okian/toolrank/internal/domain/ranking"
)

// Finalized is a complete period ready to be persisted.
type Finalized struct {
	Period ranking.Period
	States []delta.State
	Audit  []ranking.Audit
}

// PeriodStore persists periods. SavePeriod must store the whole period and
// make it current in a single transaction.
type PeriodStore interface {
	SavePeriod(ctx context.Context, f Finalized, opts ...SaveOption) error
	CurrentPeriod(ctx context.Context) (*ranking.Period, error)
	Period(ctx context.Context, id string) (*ranking.Period, error)
	PeriodIDs(ctx context.Context) ([]string, error)
	LastKnownPositions(ctx context.Context, before time.Time) (map[string]int, error)
	Audit(ctx context.Context, periodID string) ([]ranking.Audit, error)
}

// StateStore persists per-tool baseline and delta.
type StateStore interface {
	ScoreStates(ctx context.Context) (map[string]delta.State, error)
	SaveScoreState(ctx context.Context, st delta.State) error
}

// EventLog keeps every accepted event so deltas can be rebuilt.
type EventLog interface {
	AppendEvent(ctx context.Context, e model.Event) (bool, error)
	EventsSince(ctx context.Context, since time.Time) ([]model.Event, error)
}
