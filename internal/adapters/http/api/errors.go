package api

import (
	"errors"
	"net/http"

	"github.com/okian/toolrank/internal/adapters/repository"
	service "github.com/okian/toolrank/internal/app"
	"github.com/okian/toolrank/internal/domain/ranking"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrRateLimited  = errors.New("rate limited")
)

// classify maps an upstream error to a status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidEvent),
		errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrPeriodExists),
		errors.Is(err, service.ErrStalePeriod),
		errors.Is(err, service.ErrNotCurrent):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ranking.ErrNoTools):
		return http.StatusUnprocessableEntity, "no_tools"
	case errors.Is(err, ErrBackpressure), errors.Is(err, service.ErrQueueFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, service.ErrNoSnapshot):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
