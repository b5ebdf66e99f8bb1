package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/toolrank/internal/domain/movement"
	"github.com/okian/toolrank/internal/domain/ranking"
)

// RankingsDependencies reads finalized periods.
type RankingsDependencies interface {
	CurrentPeriod(ctx context.Context) (*ranking.Period, error)
	Period(ctx context.Context, id string) (*ranking.Period, error)
}

// RankingsHandler serves finalized periods.
type RankingsHandler struct {
	deps     RankingsDependencies
	maxLimit int
}

// NewRankingsHandler creates a new rankings handler.
func NewRankingsHandler(deps RankingsDependencies, maxLimit int) *RankingsHandler {
	return &RankingsHandler{deps: deps, maxLimit: maxLimit}
}

type rankingsResponse struct {
	PeriodID string          `json:"period_id"`
	Version  string          `json:"algorithm_version"`
	AsOf     time.Time       `json:"as_of"`
	Total    int             `json:"total"`
	Entries  []ranking.Entry `json:"entries"`
	Dropped  []movement.Info `json:"dropped,omitempty"`
}

// HandleGetCurrent handles GET /rankings?limit=N requests.
func (h *RankingsHandler) HandleGetCurrent(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rankings"
	n, err := parseLimit(r, op, h.maxLimit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	p, err := h.deps.CurrentPeriod(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRankingsResponse(p, n))
}

// HandleGetPeriod handles GET /rankings/{period_id}?limit=N requests.
func (h *RankingsHandler) HandleGetPeriod(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_period"
	n, err := parseLimit(r, op, h.maxLimit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	p, err := h.deps.Period(r.Context(), r.PathValue("period_id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRankingsResponse(p, n))
}

func newRankingsResponse(p *ranking.Period, limit int) rankingsResponse {
	entries := p.Entries
	if len(entries) > limit {
		entries = entries[:limit]
	}
	if entries == nil {
		entries = []ranking.Entry{}
	}
	return rankingsResponse{
		PeriodID: p.ID,
		Version:  p.Version,
		AsOf:     p.AsOf,
		Total:    len(p.Entries),
		Entries:  entries,
		Dropped:  p.Dropped,
	}
}
