package metrics

import (
	"net/http"
	"time"

	"llm_compare/internal/models"
)

// Recorder receives observations from the dispatcher and the HTTP layer
type Recorder interface {
	// ObserveProviderCall records one provider call within a round
	ObserveProviderCall(provider models.ProviderType, latency time.Duration, tokens int, err error)

	// ObserveRound records a completed round
	ObserveRound(duration time.Duration, providers int)

	// ObserveCatalogRefresh records a model catalog rebuild
	ObserveCatalogRefresh(duration time.Duration, failures int)

	// ObserveHTTPRequest records a served HTTP request
	ObserveHTTPRequest(route string, status int, duration time.Duration)
}

// Metrics is a Recorder that can also expose what it recorded
type Metrics interface {
	Recorder
	HTTPHandler() http.Handler
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (m *NoopMetrics) ObserveProviderCall(models.ProviderType, time.Duration, int, error) {}

func (m *NoopMetrics) ObserveRound(time.Duration, int) {}

func (m *NoopMetrics) ObserveCatalogRefresh(time.Duration, int) {}

func (m *NoopMetrics) ObserveHTTPRequest(string, int, time.Duration) {}

func (m *NoopMetrics) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}
