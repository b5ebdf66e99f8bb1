package api

import (
	"net/http"
)

// StatsProvider reports service counters and the registered algorithms.
type StatsProvider interface {
	GetStats() map[string]interface{}
	Algorithms() []string
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

type statsResponse struct {
	Service    map[string]interface{} `json:"service"`
	Algorithms []string               `json:"algorithms"`
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	algos := h.statsProvider.Algorithms()
	if algos == nil {
		algos = []string{}
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Service:    h.statsProvider.GetStats(),
		Algorithms: algos,
	})
}
