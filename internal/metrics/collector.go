package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"llm_compare/internal/models"
	"llm_compare/internal/utils"
)

// ProviderStats aggregates the calls made to one provider
type ProviderStats struct {
	Calls          int64     `json:"calls"`
	Errors         int64     `json:"errors"`
	Tokens         int64     `json:"tokens"`
	TotalLatencyMS int64     `json:"total_latency_ms"`
	LastError      string    `json:"last_error,omitempty"`
	LastErrorAt    time.Time `json:"last_error_at,omitempty"`
}

// AverageLatencyMS returns the mean call latency
func (s ProviderStats) AverageLatencyMS() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.TotalLatencyMS) / float64(s.Calls)
}

// Snapshot is a point-in-time copy of every counter
type Snapshot struct {
	StartedAt              time.Time                             `json:"started_at"`
	Rounds                 int64                                 `json:"rounds"`
	RoundDurationMS        int64                                 `json:"round_duration_ms_total"`
	CatalogRefreshes       int64                                 `json:"catalog_refreshes"`
	CatalogRefreshFailures int64                                 `json:"catalog_refresh_failures"`
	Providers              map[models.ProviderType]ProviderStats `json:"providers"`
	HTTPRequests           map[string]map[string]int64           `json:"http_requests"`
}

// Collector keeps counters in memory and serves them in the Prometheus text format
type Collector struct {
	mu sync.Mutex

	startedAt              time.Time
	rounds                 int64
	roundDurationMS        int64
	catalogRefreshes       int64
	catalogRefreshFailures int64
	providers              map[models.ProviderType]*ProviderStats
	httpRequests           map[string]map[string]int64 // route -> status -> count
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{
		startedAt:    time.Now(),
		providers:    make(map[models.ProviderType]*ProviderStats),
		httpRequests: make(map[string]map[string]int64),
	}
}

func (c *Collector) ObserveProviderCall(provider models.ProviderType, latency time.Duration, tokens int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.providers[provider]
	if !ok {
		stats = &ProviderStats{}
		c.providers[provider] = stats
	}
	stats.Calls++
	stats.TotalLatencyMS += latency.Milliseconds()
	if err != nil {
		stats.Errors++
		stats.LastError = err.Error()
		stats.LastErrorAt = time.Now()
		return
	}
	stats.Tokens += int64(tokens)
}

func (c *Collector) ObserveRound(duration time.Duration, providers int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rounds++
	c.roundDurationMS += duration.Milliseconds()
}

func (c *Collector) ObserveCatalogRefresh(duration time.Duration, failures int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.catalogRefreshes++
	c.catalogRefreshFailures += int64(failures)
}

func (c *Collector) ObserveHTTPRequest(route string, status int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byStatus, ok := c.httpRequests[route]
	if !ok {
		byStatus = make(map[string]int64)
		c.httpRequests[route] = byStatus
	}
	byStatus[strconv.Itoa(status)]++
}

// Snapshot copies the current counters
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		StartedAt:              c.startedAt,
		Rounds:                 c.rounds,
		RoundDurationMS:        c.roundDurationMS,
		CatalogRefreshes:       c.catalogRefreshes,
		CatalogRefreshFailures: c.catalogRefreshFailures,
		Providers:              make(map[models.ProviderType]ProviderStats, len(c.providers)),
		HTTPRequests:           make(map[string]map[string]int64, len(c.httpRequests)),
	}
	for provider, stats := range c.providers {
		snap.Providers[provider] = *stats
	}
	for route, byStatus := range c.httpRequests {
		copied := make(map[string]int64, len(byStatus))
		for status, n := range byStatus {
			copied[status] = n
		}
		snap.HTTPRequests[route] = copied
	}
	return snap
}

// HTTPHandler serves the Prometheus text format, or JSON with ?format=json
func (c *Collector) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := c.Snapshot()
		if r.URL.Query().Get("format") == "json" {
			utils.RespondWithJSON(w, http.StatusOK, snap)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, snap.Prometheus())
	})
}

// Prometheus renders the snapshot in the Prometheus exposition format
func (s Snapshot) Prometheus() string {
	var b strings.Builder

	writeMetric(&b, "llm_compare_uptime_seconds", "gauge", "Seconds since the process started.")
	fmt.Fprintf(&b, "llm_compare_uptime_seconds %d\n", int64(time.Since(s.StartedAt).Seconds()))

	writeMetric(&b, "llm_compare_rounds_total", "counter", "Completed dispatch rounds.")
	fmt.Fprintf(&b, "llm_compare_rounds_total %d\n", s.Rounds)
	writeMetric(&b, "llm_compare_round_duration_ms_total", "counter", "Total wall time spent in rounds.")
	fmt.Fprintf(&b, "llm_compare_round_duration_ms_total %d\n", s.RoundDurationMS)

	writeMetric(&b, "llm_compare_catalog_refreshes_total", "counter", "Model catalog rebuilds.")
	fmt.Fprintf(&b, "llm_compare_catalog_refreshes_total %d\n", s.CatalogRefreshes)
	writeMetric(&b, "llm_compare_catalog_refresh_failures_total", "counter", "Providers that failed to list models during a rebuild.")
	fmt.Fprintf(&b, "llm_compare_catalog_refresh_failures_total %d\n", s.CatalogRefreshFailures)

	providers := make([]string, 0, len(s.Providers))
	for p := range s.Providers {
		providers = append(providers, string(p))
	}
	sort.Strings(providers)

	series := []struct {
		name, help string
		value      func(ProviderStats) int64
	}{
		{"llm_compare_provider_calls_total", "Provider calls.", func(p ProviderStats) int64 { return p.Calls }},
		{"llm_compare_provider_errors_total", "Failed provider calls.", func(p ProviderStats) int64 { return p.Errors }},
		{"llm_compare_provider_tokens_total", "Tokens reported by providers.", func(p ProviderStats) int64 { return p.Tokens }},
		{"llm_compare_provider_latency_ms_total", "Total provider call latency.", func(p ProviderStats) int64 { return p.TotalLatencyMS }},
	}
	for _, m := range series {
		writeMetric(&b, m.name, "counter", m.help)
		for _, p := range providers {
			fmt.Fprintf(&b, "%s{provider=%q} %d\n", m.name, p, m.value(s.Providers[models.ProviderType(p)]))
		}
	}

	routes := make([]string, 0, len(s.HTTPRequests))
	for route := range s.HTTPRequests {
		routes = append(routes, route)
	}
	sort.Strings(routes)

	writeMetric(&b, "llm_compare_http_requests_total", "counter", "Served HTTP requests.")
	for _, route := range routes {
		statuses := make([]string, 0, len(s.HTTPRequests[route]))
		for status := range s.HTTPRequests[route] {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			fmt.Fprintf(&b, "llm_compare_http_requests_total{route=%q,status=%q} %d\n", route, status, s.HTTPRequests[route][status])
		}
	}

	return b.String()
}

func writeMetric(b *strings.Builder, name, kind, help string) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}
