package httpapi

import (
	"context"
	"net/http"

	"llm_compare/internal/auth"
	"llm_compare/internal/config"
	"llm_compare/internal/metrics"
	"llm_compare/internal/middleware"
	"llm_compare/internal/models"
	"llm_compare/internal/multiclient"
	"llm_compare/internal/queue"
	"llm_compare/internal/ratelimit"

	"github.com/google/uuid"
)

// Comparer is the part of the MultiClient the HTTP layer drives
type Comparer interface {
	Dispatch(ctx context.Context, prompt, systemPrompt string) *models.Round
	Models(ctx context.Context, refresh bool) map[models.ProviderType][]string
	CurrentModels() map[models.ProviderType]string
	SetCurrentModel(ctx context.Context, provider models.ProviderType, model string) error
	SetKeys(ctx context.Context, keys map[models.ProviderType]string) (map[models.ProviderType]error, error)
	Providers() []multiclient.ProviderStatus
	MaskedKeys() map[models.ProviderType]string
}

// HistoryReader serves persisted rounds
type HistoryReader interface {
	GetByRound(ctx context.Context, roundID uuid.UUID) ([]*models.RoundRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*models.RoundRecord, error)
}

// HistoryQueue exposes the round history pipeline for inspection
type HistoryQueue interface {
	GetQueueLength(ctx context.Context) (int, error)
	GetDeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error)
	RetryDeadLetterItem(ctx context.Context, id string) error
}

// HealthCheck reports whether a backing service is reachable
type HealthCheck func(ctx context.Context) error

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Client    Comparer
	Metrics   metrics.Metrics
	RateLimit ratelimit.Limiter
	History   HistoryReader // nil when rounds are not stored in Postgres
	Queue     HistoryQueue  // nil when round history is disabled
	Health    map[string]HealthCheck
}

// NewRouter creates an HTTP router with all dependencies wired up
func NewRouter(cfg *config.Config, deps *Dependencies) http.Handler {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoopMetrics()
	}
	if deps.RateLimit == nil {
		deps.RateLimit = ratelimit.NewNoopLimiter()
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)
	return mux
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies, cfg *config.Config) {
	proxies, err := middleware.NewTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		logger.Error("Ignoring trusted proxies", "error", err)
		proxies = nil
	}
	limit := middleware.RateLimitMiddleware(deps.RateLimit, cfg.RateLimit.PerMinute, proxies)
	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, middleware.InstrumentMiddleware(deps.Metrics, name)(h))
	}

	// Public comparison API, rate limited per client
	route("POST /v1/responses", "/v1/responses", limit(http.HandlerFunc(deps.handleResponses)))
	route("GET /v1/models", "/v1/models", limit(http.HandlerFunc(deps.handleModels)))
	route("GET /v1/models/current", "/v1/models/current", http.HandlerFunc(deps.handleGetCurrentModels))
	route("PUT /v1/models/current", "/v1/models/current", limit(http.HandlerFunc(deps.handleSetCurrentModel)))
	route("GET /v1/providers", "/v1/providers", http.HandlerFunc(deps.handleProviders))
	route("GET /v1/rounds", "/v1/rounds", http.HandlerFunc(deps.handleListRounds))
	route("GET /v1/rounds/{id}", "/v1/rounds/{id}", http.HandlerFunc(deps.handleGetRound))

	// Health check endpoint - public
	mux.HandleFunc("GET /health", deps.handleHealth)

	// Metrics endpoint - public
	mux.Handle("GET /metrics", deps.Metrics.HTTPHandler())

	// Admin authentication endpoint - public, rate limited against guessing
	route("POST /admin/auth/login", "/admin/auth/login", limit(auth.LoginHandler(cfg)))

	viewer := middleware.AdminJWTMiddleware(cfg, auth.RoleViewer)
	admin := middleware.AdminJWTMiddleware(cfg, auth.RoleAdmin)
	route("GET /admin/keys", "/admin/keys", viewer(http.HandlerFunc(deps.handleListKeys)))
	route("PUT /admin/keys", "/admin/keys", admin(http.HandlerFunc(deps.handleSetKeys)))
	route("GET /admin/history/dead-letters", "/admin/history/dead-letters", viewer(http.HandlerFunc(deps.handleListDeadLetters)))
	route("POST /admin/history/dead-letters/{id}/retry", "/admin/history/dead-letters/{id}/retry", admin(http.HandlerFunc(deps.handleRetryDeadLetter)))
}
