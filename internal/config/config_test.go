package config

import (
	"testing"
	"time"

	"llm_compare/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, KeyStoreFile, cfg.Settings.Backend)
	assert.Equal(t, ".", cfg.Settings.Dir)
	assert.Equal(t, QueueBackendMemory, cfg.History.QueueBackend)
	assert.Equal(t, []string{HistorySinkFile}, cfg.History.Sinks)
	assert.Equal(t, time.Duration(0), cfg.Dispatcher.CatalogTTL)
	assert.Equal(t, 0, cfg.Dispatcher.MaxConcurrency)
	assert.Equal(t, 60*time.Second, cfg.Dispatcher.RequestTimeout)
	assert.Equal(t, 0, cfg.RateLimit.PerMinute)
	assert.False(t, cfg.NeedsDatabase())
	assert.False(t, cfg.NeedsRedis())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOCAL", "true")
	t.Setenv("KEY_STORE", "Redis")
	t.Setenv("ENCRYPTION_KEY", "c2VjcmV0")
	t.Setenv("HISTORY_SINK", "file, postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/llm_compare")
	t.Setenv("CATALOG_TTL", "10m")
	t.Setenv("MAX_CONCURRENCY", "4")
	t.Setenv("OPEN_AI_BASE_URL", "http://localhost:1234/v1")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.True(t, cfg.Local)
	assert.Equal(t, KeyStoreRedis, cfg.Settings.Backend)
	assert.Equal(t, []string{HistorySinkFile, HistorySinkPostgres}, cfg.History.Sinks)
	assert.True(t, cfg.History.HasSink(HistorySinkPostgres))
	assert.Equal(t, 10*time.Minute, cfg.Dispatcher.CatalogTTL)
	assert.Equal(t, 4, cfg.Dispatcher.MaxConcurrency)
	assert.Equal(t, map[models.ProviderType]string{
		models.ProviderTypeOpenAI: "http://localhost:1234/v1",
	}, cfg.Dispatcher.BaseURLs)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.RateLimit.TrustedProxies)
	assert.True(t, cfg.NeedsDatabase())
	assert.True(t, cfg.NeedsRedis())
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_TOKENS", "lots")
	t.Setenv("CATALOG_TTL", "soon")
	t.Setenv("LOCAL", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Dispatcher.MaxTokens)
	assert.Equal(t, time.Duration(0), cfg.Dispatcher.CatalogTTL)
	assert.False(t, cfg.Local)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown key store", env: map[string]string{"KEY_STORE": "etcd"}},
		{name: "postgres store without encryption key", env: map[string]string{
			"KEY_STORE": "postgres", "DATABASE_URL": "postgres://localhost/db",
		}},
		{name: "postgres store without database", env: map[string]string{
			"KEY_STORE": "postgres", "ENCRYPTION_KEY": "c2VjcmV0",
		}},
		{name: "unknown queue backend", env: map[string]string{"QUEUE_BACKEND": "kafka"}},
		{name: "unknown history sink", env: map[string]string{"HISTORY_SINK": "file,kafka"}},
		{name: "s3 sink without bucket", env: map[string]string{"HISTORY_SINK": "s3"}},
		{name: "postgres sink without database", env: map[string]string{"HISTORY_SINK": "postgres"}},
		{name: "negative concurrency", env: map[string]string{"MAX_CONCURRENCY": "-1"}},
		{name: "invalid trusted proxy", env: map[string]string{"TRUSTED_PROXIES": "10.0.0.0/8,proxy.local"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
