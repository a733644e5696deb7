// Package multiclient dispatches one prompt to every configured LLM provider
// concurrently and keeps the per-provider credentials, current model
// selection and model catalog.
package multiclient

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"llm_compare/internal/metrics"
	"llm_compare/internal/models"
	"llm_compare/internal/providers"
	"llm_compare/internal/storage"
	"llm_compare/internal/utils"
)

// RoundRecorder receives every completed round for persistence
type RoundRecorder interface {
	RecordRound(ctx context.Context, round *models.Round) error
}

// Config holds the collaborators and limits of a MultiClient
type Config struct {
	Factory  providers.Factory
	Store    storage.SettingsStore // nil keeps settings in memory only
	Recorder RoundRecorder         // nil disables round history
	Metrics  metrics.Recorder      // nil disables metrics

	// CatalogTTL expires cached model lists; 0 keeps them until refresh or a key change
	CatalogTTL time.Duration

	// MaxConcurrency bounds in-flight provider calls per round; 0 means unlimited
	MaxConcurrency int

	// MaxTokens is passed to every generation request; 0 lets each vendor decide
	MaxTokens int
}

// ProviderStatus describes one provider type as seen by the client
type ProviderStatus struct {
	Type             models.ProviderType `json:"type"`
	Configured       bool                `json:"configured"`
	CurrentModel     string              `json:"current_model"`
	CredentialFormat string              `json:"credential_format"`
}

// MultiClient owns one provider client per configured provider type
type MultiClient struct {
	factory        providers.Factory
	store          storage.SettingsStore
	recorder       RoundRecorder
	metrics        metrics.Recorder
	maxConcurrency int
	maxTokens      int
	logger         *utils.Logger

	// keysMu serializes credential changes so the store sees them in memory order
	keysMu sync.Mutex

	mu            sync.RWMutex
	clients       map[models.ProviderType]providers.Provider
	keys          map[models.ProviderType]string
	currentModels map[models.ProviderType]string
	keysVersion   uint64 // bumped on every credential change

	catalogMu      sync.Mutex
	catalog        *storage.LRUCache[models.ProviderType, []string]
	catalogVersion uint64 // keysVersion the catalog was built from
	catalogBuilt   bool
}

// New creates a MultiClient with no configured providers and default model selections
func New(cfg Config) (*MultiClient, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("provider factory is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoopMetrics()
	}
	if cfg.MaxConcurrency < 0 {
		cfg.MaxConcurrency = 0
	}

	return &MultiClient{
		factory:        cfg.Factory,
		store:          cfg.Store,
		recorder:       cfg.Recorder,
		metrics:        cfg.Metrics,
		maxConcurrency: cfg.MaxConcurrency,
		maxTokens:      cfg.MaxTokens,
		logger:         utils.NewLogger("multiclient"),
		clients:        make(map[models.ProviderType]providers.Provider),
		keys:           make(map[models.ProviderType]string),
		currentModels:  models.DefaultModelSelection(),
		catalog:        storage.NewLRUCache[models.ProviderType, []string](len(models.AllProviderTypes()), cfg.CatalogTTL),
	}, nil
}

// Load restores credentials and model selections from the settings store.
// Stored credentials that no longer parse are skipped and logged.
func (m *MultiClient) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	selections, err := m.store.LoadModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to load model selections: %w", err)
	}
	m.mu.Lock()
	for provider, model := range selections {
		if provider.IsValid() && model != "" {
			m.currentModels[provider] = model
		}
	}
	m.mu.Unlock()

	keys, err := m.store.LoadKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to load provider keys: %w", err)
	}
	m.keysMu.Lock()
	results, _ := m.applyKeys(keys)
	m.keysMu.Unlock()
	for provider, err := range results {
		if err != nil {
			m.logger.Warn("Skipping stored credentials", "provider", provider, "error", err)
		}
	}

	m.logger.Info("Settings loaded", "providers", len(m.ConfiguredProviders()))
	return nil
}

// SetKeys replaces credentials per provider. Each provider succeeds or fails
// on its own: malformed credentials fail that provider, drop its previous
// client and leave the others untouched. An empty value removes the provider.
// The store is updated to match: applied keys are saved and providers left
// unconfigured are deleted. A persistence failure is returned separately and
// does not undo the in-memory change.
func (m *MultiClient) SetKeys(ctx context.Context, keys map[models.ProviderType]string) (map[models.ProviderType]error, error) {
	m.keysMu.Lock()
	defer m.keysMu.Unlock()

	results, persist := m.applyKeys(keys)

	if m.store == nil || len(persist) == 0 {
		return results, nil
	}
	if err := m.store.SaveKeys(ctx, persist); err != nil {
		m.logger.Error("Failed to persist provider keys", "error", err)
		return results, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	return results, nil
}

// applyKeys swaps clients in memory and returns the per-provider outcome
// together with the store update that mirrors it ("" deletes an entry).
// Callers hold keysMu.
func (m *MultiClient) applyKeys(keys map[models.ProviderType]string) (map[models.ProviderType]error, map[models.ProviderType]string) {
	results := make(map[models.ProviderType]error, len(keys))
	persist := make(map[models.ProviderType]string, len(keys))
	var retired []providers.Provider

	m.mu.Lock()
	changed := false
	for provider, raw := range keys {
		if !provider.IsValid() {
			results[provider] = fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
			continue
		}

		old, hadClient := m.clients[provider]
		if raw != "" && hadClient && m.keys[provider] == raw {
			results[provider] = nil
			continue
		}

		if hadClient {
			retired = append(retired, old)
			delete(m.clients, provider)
			delete(m.keys, provider)
			changed = true
		}

		if raw == "" {
			results[provider] = nil
			persist[provider] = ""
			continue
		}

		client, err := m.factory.CreateProvider(provider, raw)
		if err != nil {
			results[provider] = err
			persist[provider] = ""
			continue
		}
		m.clients[provider] = client
		m.keys[provider] = raw
		results[provider] = nil
		persist[provider] = raw
		changed = true
	}
	if changed {
		m.keysVersion++
	}
	m.mu.Unlock()

	for _, client := range retired {
		if err := client.Close(); err != nil {
			m.logger.Warn("Failed to close provider client", "provider", client.Type(), "error", err)
		}
	}

	for provider, err := range results {
		if err != nil {
			m.logger.Warn("Rejected provider credentials", "provider", provider, "error", err)
		} else {
			m.logger.Debug("Provider credentials applied", "provider", provider, "fingerprint", utils.Fingerprint(keys[provider]))
		}
	}
	return results, persist
}

// SetCurrentModel selects the model used for a provider in later rounds.
// The model is not checked against the catalog.
func (m *MultiClient) SetCurrentModel(ctx context.Context, provider models.ProviderType, model string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	if model == "" {
		return ErrEmptyModel
	}

	m.mu.Lock()
	m.currentModels[provider] = model
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.SaveModel(ctx, provider, model); err != nil {
			m.logger.Error("Failed to persist model selection", "provider", provider, "error", err)
			return fmt.Errorf("%w: %v", ErrPersistFailed, err)
		}
	}
	return nil
}

// CurrentModels returns a copy of the model selection for every provider type
func (m *MultiClient) CurrentModels() map[models.ProviderType]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[models.ProviderType]string, len(m.currentModels))
	for provider, model := range m.currentModels {
		out[provider] = model
	}
	return out
}

// ConfiguredProviders returns the provider types that currently have a client, sorted
func (m *MultiClient) ConfiguredProviders() []models.ProviderType {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ProviderType, 0, len(m.clients))
	for provider := range m.clients {
		out = append(out, provider)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Providers reports the status of every supported provider type in display order
func (m *MultiClient) Providers() []ProviderStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	supported := m.factory.SupportedTypes()
	out := make([]ProviderStatus, 0, len(supported))
	for _, provider := range supported {
		_, configured := m.clients[provider]
		out = append(out, ProviderStatus{
			Type:             provider,
			Configured:       configured,
			CurrentModel:     m.currentModels[provider],
			CredentialFormat: providers.CredentialFormat(provider),
		})
	}
	return out
}

// MaskedKeys returns the configured credentials with every segment masked
func (m *MultiClient) MaskedKeys() map[models.ProviderType]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[models.ProviderType]string, len(m.keys))
	for provider, key := range m.keys {
		out[provider] = utils.MaskSecret(key, providers.CredentialDelimiter)
	}
	return out
}

// snapshot copies the clients and their selected models for one round
func (m *MultiClient) snapshot() (map[models.ProviderType]providers.Provider, map[models.ProviderType]string, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := make(map[models.ProviderType]providers.Provider, len(m.clients))
	selected := make(map[models.ProviderType]string, len(m.clients))
	for provider, client := range m.clients {
		clients[provider] = client
		selected[provider] = m.currentModels[provider]
	}
	return clients, selected, m.keysVersion
}

// Close releases every provider client
func (m *MultiClient) Close() error {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[models.ProviderType]providers.Provider)
	m.keys = make(map[models.ProviderType]string)
	m.keysVersion++
	m.mu.Unlock()

	for _, client := range clients {
		if err := client.Close(); err != nil {
			m.logger.Warn("Failed to close provider client", "provider", client.Type(), "error", err)
		}
	}
	return nil
}
