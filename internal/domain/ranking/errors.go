package ranking

import "errors"

var (
	// ErrNoTools is returned when a pass has nothing to rank.
	ErrNoTools = errors.New("ranking: no tools to score")
	// ErrDuplicateTool is returned when two snapshots share an id.
	ErrDuplicateTool = errors.New("ranking: duplicate tool id")
	// ErrMissingEvaluator is returned when the version names a factor the
	// engine's catalog cannot evaluate.
	ErrMissingEvaluator = errors.New("ranking: missing evaluator")
)
