package api

import (
	"context"
	"net/http"

	"github.com/okian/toolrank/internal/adapters/repository"
)

// RankDependencies defines the interface for a single live standing.
type RankDependencies interface {
	Rank(ctx context.Context, toolID string) (repository.Standing, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /standings/{tool_id} requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Rank(r.Context(), r.PathValue("tool_id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
