package api

import (
	"context"
	"net/http"

	"github.com/okian/toolrank/internal/adapters/repository"
)

// LeaderboardDependencies defines the interface for live standings.
type LeaderboardDependencies interface {
	TopN(ctx context.Context, n int) ([]repository.Standing, error)
}

// LeaderboardHandler handles live standings requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetStandings handles GET /standings?limit=N requests.
func (h *LeaderboardHandler) HandleGetStandings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_standings"
	n, err := parseLimit(r, op, h.maxLimit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	rows, err := h.deps.TopN(r.Context(), n)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if rows == nil {
		rows = []repository.Standing{}
	}
	writeJSON(w, http.StatusOK, rows)
}
