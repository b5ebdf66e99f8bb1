package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	service "github.com/okian/toolrank/internal/app"
	"github.com/okian/toolrank/internal/domain/model"
	"github.com/okian/toolrank/pkg/metrics"
	"golang.org/x/time/rate"
)

// EventDependencies defines the interface for event ingestion.
type EventDependencies interface {
	// Ingest queues an event and returns it with its final id.
	Ingest(ctx context.Context, e model.Event) (model.Event, error)
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps    EventDependencies
	limiter *rate.Limiter
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies, limiter *rate.Limiter) *EventsHandler {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &EventsHandler{deps: deps, limiter: limiter}
}

// eventRequest is the body of POST /events.
type eventRequest struct {
	EventID       string   `json:"event_id"`
	ToolID        string   `json:"tool_id"`
	Type          string   `json:"type"`
	RawImportance *float64 `json:"raw_importance"`
	TS            string   `json:"ts"`
	Title         string   `json:"title"`
}

func (e eventRequest) toEvent() (model.Event, error) {
	switch {
	case strings.TrimSpace(e.ToolID) == "":
		return model.Event{}, errors.New("missing tool_id")
	case strings.TrimSpace(e.Type) == "":
		return model.Event{}, errors.New("missing type")
	case e.RawImportance == nil:
		return model.Event{}, errors.New("missing raw_importance")
	}
	ev := model.Event{
		ID:            strings.TrimSpace(e.EventID),
		ToolID:        strings.TrimSpace(e.ToolID),
		Type:          model.EventType(strings.ToLower(strings.TrimSpace(e.Type))),
		RawImportance: *e.RawImportance,
		Title:         e.Title,
	}
	if e.TS != "" {
		ts, err := time.Parse(time.RFC3339, e.TS)
		if err != nil {
			return model.Event{}, errors.New("invalid ts; must be RFC3339")
		}
		ev.Timestamp = ts
	}
	return ev, nil
}

type ackResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	if !h.limiter.Allow() {
		metrics.RecordEventRejected("rate_limited")
		writeFailure(w, fmt.Errorf("%s: %w", op, ErrRateLimited))
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, fmt.Errorf("%s: %w: %v", op, ErrBadRequest, err))
		return
	}
	ev, err := req.toEvent()
	if err != nil {
		writeFailure(w, fmt.Errorf("%s: %w: %v", op, ErrBadRequest, err))
		return
	}

	ev, err = h.deps.Ingest(r.Context(), ev)
	switch {
	case errors.Is(err, service.ErrDuplicateEvent):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", EventID: ev.ID, Duplicate: true})
	case err != nil:
		writeFailure(w, fmt.Errorf("%s: %w", op, err))
	default:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", EventID: ev.ID})
	}
}
