package api

import (
	"context"
	"net/http"

	"github.com/okian/toolrank/internal/domain/ranking"
)

// ExplainDependencies explains a tool's score.
type ExplainDependencies interface {
	Explain(ctx context.Context, toolID, periodID string) (ranking.Explanation, error)
}

// ExplainHandler handles score explanation requests.
type ExplainHandler struct {
	deps ExplainDependencies
}

// NewExplainHandler creates a new explain handler.
func NewExplainHandler(deps ExplainDependencies) *ExplainHandler {
	return &ExplainHandler{deps: deps}
}

// HandleExplain handles GET /explain/{tool_id}?period=ID requests; without
// ?period the current period is used.
func (h *ExplainHandler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	ex, err := h.deps.Explain(r.Context(), r.PathValue("tool_id"), r.URL.Query().Get("period"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}
