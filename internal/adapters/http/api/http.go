// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	EventDependencies
	LeaderboardDependencies
	RankDependencies
	RankingsDependencies
	ExplainDependencies
	PeriodDependencies
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimit limits POST /events to perSec with the given burst; a
// non-positive rate disables limiting.
func WithRateLimit(perSec float64, burst int) Option {
	return func(s *Server) {
		if perSec <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithClock overrides the as-of used when a close request names none.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.clock = now
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	limiter *rate.Limiter
	clock   func() time.Time

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	rankingsHandler    *RankingsHandler
	explainHandler     *ExplainHandler
	periodsHandler     *PeriodsHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps every
// ?limit parameter.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int, opts ...Option) *Server {
	if maxLimit < 1 {
		maxLimit = 100
	}
	s := &Server{
		limiter: rate.NewLimiter(rate.Inf, 0),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.eventsHandler = NewEventsHandler(deps, s.limiter)
	s.leaderboardHandler = NewLeaderboardHandler(deps, maxLimit)
	s.rankHandler = NewRankHandler(deps)
	s.rankingsHandler = NewRankingsHandler(deps, maxLimit)
	s.explainHandler = NewExplainHandler(deps)
	s.periodsHandler = NewPeriodsHandler(deps, s.clock)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("GET /standings", MetricsMiddleware(s.leaderboardHandler.HandleGetStandings, "standings"))
	mux.HandleFunc("GET /standings/{tool_id}", MetricsMiddleware(s.rankHandler.HandleGetRank, "standing"))
	mux.HandleFunc("GET /rankings", MetricsMiddleware(s.rankingsHandler.HandleGetCurrent, "rankings"))
	mux.HandleFunc("GET /rankings/{period_id}", MetricsMiddleware(s.rankingsHandler.HandleGetPeriod, "ranking"))
	mux.HandleFunc("GET /explain/{tool_id}", MetricsMiddleware(s.explainHandler.HandleExplain, "explain"))
	mux.HandleFunc("GET /periods", MetricsMiddleware(s.periodsHandler.HandleList, "periods"))
	mux.HandleFunc("GET /periods/{period_id}/audit", MetricsMiddleware(s.periodsHandler.HandleAudit, "audit"))
	mux.HandleFunc("POST /periods/close", MetricsMiddleware(s.periodsHandler.HandleClose, "close"))
	mux.HandleFunc("POST /periods/{period_id}/recompute", MetricsMiddleware(s.periodsHandler.HandleRecompute, "recompute"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure writes err with the status its kind maps to.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

// parseLimit reads ?limit, defaulting to max when absent.
func parseLimit(r *http.Request, op string, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return max, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s: %w: limit must be a positive integer", op, ErrBadRequest)
	}
	if n > max {
		return 0, fmt.Errorf("%s: %w: limit exceeds %d", op, ErrBadRequest, max)
	}
	return n, nil
}
