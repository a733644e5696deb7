package multiclient

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"llm_compare/internal/models"
	"llm_compare/internal/providers"
)

// Models returns the model catalog of every configured provider. The catalog
// is rebuilt wholesale when refresh is set, when credentials changed since
// the last build, or when a cached entry expired; otherwise the cached lists
// are returned. A provider whose listing fails contributes an empty list.
func (m *MultiClient) Models(ctx context.Context, refresh bool) map[models.ProviderType][]string {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	clients, _, version := m.snapshot()

	if !refresh && m.catalogBuilt && m.catalogVersion == version {
		if cached, ok := m.cachedCatalog(clients); ok {
			return cached
		}
	}

	catalog := m.fetchCatalog(ctx, clients)

	m.catalog.Clear()
	for provider, list := range catalog {
		m.catalog.Set(provider, list)
	}
	m.catalogVersion = version
	m.catalogBuilt = true

	return copyCatalog(catalog)
}

// cachedCatalog returns the cache contents if every configured provider still has an entry
func (m *MultiClient) cachedCatalog(clients map[models.ProviderType]providers.Provider) (map[models.ProviderType][]string, bool) {
	out := make(map[models.ProviderType][]string, len(clients))
	for provider := range clients {
		list, ok := m.catalog.Get(provider)
		if !ok {
			return nil, false
		}
		out[provider] = list
	}
	return copyCatalog(out), true
}

// fetchCatalog lists models from every client concurrently
func (m *MultiClient) fetchCatalog(ctx context.Context, clients map[models.ProviderType]providers.Provider) map[models.ProviderType][]string {
	start := time.Now()
	listCtx := context.WithoutCancel(ctx)

	var (
		mu       sync.Mutex
		g        errgroup.Group
		failures int
	)
	if m.maxConcurrency > 0 {
		g.SetLimit(m.maxConcurrency)
	}

	catalog := make(map[models.ProviderType][]string, len(clients))
	for provider, client := range clients {
		g.Go(func() error {
			list, err := m.listModels(listCtx, provider, client)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				m.logger.Warn("Failed to list models", "provider", provider, "error", err)
				list = []string{}
			}
			catalog[provider] = list
			return nil
		})
	}
	_ = g.Wait()

	m.metrics.ObserveCatalogRefresh(time.Since(start), failures)
	m.logger.Debug("Model catalog rebuilt", "providers", len(catalog), "failures", failures)
	return catalog
}

func (m *MultiClient) listModels(ctx context.Context, provider models.ProviderType, client providers.Provider) (list []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			list, err = nil, ErrProviderPanic
			m.logger.Error("Model listing panicked", "provider", provider, "panic", r)
		}
	}()

	list, err = client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	sorted := append([]string(nil), list...)
	sort.Strings(sorted)
	return sorted, nil
}

func copyCatalog(in map[models.ProviderType][]string) map[models.ProviderType][]string {
	out := make(map[models.ProviderType][]string, len(in))
	for provider, list := range in {
		out[provider] = append([]string{}, list...)
	}
	return out
}
