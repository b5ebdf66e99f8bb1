package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/toolrank/pkg/logger"
	"github.com/okian/toolrank/pkg/metrics"
)

// MetricsMiddleware records request count and latency under endpoint. Server
// errors are also logged with the matched route.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	log := logger.GetOrNop().Named("api")
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		next(sw, r)

		elapsed := time.Since(start)
		status := sw.Status()
		metrics.RecordHTTPRequest(endpoint, r.Method, strconv.Itoa(status), float64(elapsed)/float64(time.Millisecond))
		if status >= http.StatusInternalServerError {
			log.Warn(r.Context(), "request failed",
				logger.String("route", r.Pattern),
				logger.Int("status", status),
				logger.Duration("elapsed", elapsed))
		}
	}
}

// statusWriter remembers the first status written; handlers that never call
// WriteHeader answered 200.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Status is the response code sent so far.
func (w *statusWriter) Status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}
