package middleware

import (
	"net/http"
	"time"

	"llm_compare/internal/metrics"
	"llm_compare/internal/utils"
)

// statusRecorder captures the status code written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// InstrumentMiddleware reports every request under route to the metrics recorder
// and logs it at debug level
func InstrumentMiddleware(recorder metrics.Recorder, route string) func(http.Handler) http.Handler {
	logger := utils.NewLogger("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			if recorder != nil {
				recorder.ObserveHTTPRequest(route, rec.status, elapsed)
			}
			logger.Debug("Request served",
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
			)
		})
	}
}
