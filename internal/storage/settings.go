package storage

import (
	"context"

	"llm_compare/internal/models"
)

// SettingsStore persists provider credentials and current model selections
// across restarts.
type SettingsStore interface {
	// LoadKeys returns every stored credential string. A store that was
	// never written returns an empty map.
	LoadKeys(ctx context.Context) (map[models.ProviderType]string, error)

	// SaveKeys upserts the given credentials; an empty value deletes the
	// provider's entry.
	SaveKeys(ctx context.Context, keys map[models.ProviderType]string) error

	// LoadModels returns the stored current-model selections.
	LoadModels(ctx context.Context) (map[models.ProviderType]string, error)

	// SaveModel stores the current model for one provider.
	SaveModel(ctx context.Context, provider models.ProviderType, model string) error
}

// keyAssociatedData binds an encrypted credential to its provider row
func keyAssociatedData(provider models.ProviderType) string {
	return "provider_key:" + string(provider)
}
