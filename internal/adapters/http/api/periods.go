package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/toolrank/internal/domain/ranking"
)

// PeriodDependencies lists, audits, closes and recomputes periods.
type PeriodDependencies interface {
	PeriodIDs(ctx context.Context) ([]string, error)
	Audit(ctx context.Context, periodID string) ([]ranking.Audit, error)
	ClosePeriod(ctx context.Context, asOf time.Time) (*ranking.Period, error)
	RecomputePeriod(ctx context.Context, periodID string) (*ranking.Period, error)
}

// PeriodsHandler handles period administration.
type PeriodsHandler struct {
	deps  PeriodDependencies
	clock func() time.Time
}

// NewPeriodsHandler creates a new periods handler.
func NewPeriodsHandler(deps PeriodDependencies, clock func() time.Time) *PeriodsHandler {
	if clock == nil {
		clock = time.Now
	}
	return &PeriodsHandler{deps: deps, clock: clock}
}

type closeRequest struct {
	AsOf string `json:"as_of"`
}

type closeResponse struct {
	PeriodID string    `json:"period_id"`
	Version  string    `json:"algorithm_version"`
	AsOf     time.Time `json:"as_of"`
	Tools    int       `json:"tools"`
	Dropped  int       `json:"dropped"`
}

// HandleList handles GET /periods requests.
func (h *PeriodsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ids, err := h.deps.PeriodIDs(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// HandleAudit handles GET /periods/{period_id}/audit requests.
func (h *PeriodsHandler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	records, err := h.deps.Audit(r.Context(), r.PathValue("period_id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	if records == nil {
		records = []ranking.Audit{}
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleClose handles POST /periods/close. The body is optional; without an
// as_of the period containing now is closed.
func (h *PeriodsHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	const op = "api.close_period"
	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeFailure(w, fmt.Errorf("%s: %w: %v", op, ErrBadRequest, err))
		return
	}
	asOf := h.clock()
	if req.AsOf != "" {
		t, err := time.Parse(time.RFC3339, req.AsOf)
		if err != nil {
			writeFailure(w, fmt.Errorf("%s: %w: as_of must be RFC3339", op, ErrBadRequest))
			return
		}
		asOf = t
	}
	p, err := h.deps.ClosePeriod(r.Context(), asOf)
	if err != nil {
		writeFailure(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusCreated, summarize(p))
}

// HandleRecompute handles POST /periods/{period_id}/recompute. Only the
// current period can be recomputed; it is replaced in place.
func (h *PeriodsHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	const op = "api.recompute_period"
	p, err := h.deps.RecomputePeriod(r.Context(), r.PathValue("period_id"))
	if err != nil {
		writeFailure(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusOK, summarize(p))
}

func summarize(p *ranking.Period) closeResponse {
	return closeResponse{
		PeriodID: p.ID,
		Version:  p.Version,
		AsOf:     p.AsOf,
		Tools:    len(p.Entries),
		Dropped:  len(p.Dropped),
	}
}
