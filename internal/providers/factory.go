package providers

import (
	"fmt"
	"net/http"
	"sync"

	"llm_compare/internal/models"
)

// ProviderCreator is a function that creates a provider instance
type ProviderCreator func(config ProviderConfig) (Provider, error)

// FactoryConfig holds settings applied to every provider the factory creates
type FactoryConfig struct {
	HTTPClient *http.Client
	// BaseURLs overrides vendor endpoints per provider type (proxies, tests)
	BaseURLs  map[models.ProviderType]string
	MaxTokens int
}

// ProviderFactory is the concrete implementation of the Factory interface
type ProviderFactory struct {
	mu       sync.RWMutex
	creators map[models.ProviderType]ProviderCreator
	config   FactoryConfig
}

// NewProviderFactory creates a new provider factory with every built-in vendor registered
func NewProviderFactory(config FactoryConfig) *ProviderFactory {
	if config.HTTPClient == nil {
		config.HTTPClient = NewHTTPClient(0)
	}

	f := &ProviderFactory{
		creators: make(map[models.ProviderType]ProviderCreator),
		config:   config,
	}

	for t := range openAICompatibleProfiles {
		f.Register(t, NewOpenAIProvider)
	}
	f.Register(models.ProviderTypeAnthropic, NewAnthropicProvider)
	f.Register(models.ProviderTypeAzureOpenAI, NewAzureOpenAIProvider)
	f.Register(models.ProviderTypeBedrock, NewBedrockProvider)
	f.Register(models.ProviderTypeCohere, NewCohereProvider)
	f.Register(models.ProviderTypeGoogle, NewGoogleProvider)
	f.Register(models.ProviderTypeYandex, NewYandexProvider)

	return f
}

// Register registers a provider creator for a specific type
func (f *ProviderFactory) Register(providerType models.ProviderType, creator ProviderCreator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[providerType] = creator
}

// CreateProvider parses the credentials and creates a new provider instance
func (f *ProviderFactory) CreateProvider(providerType models.ProviderType, rawCredentials string) (Provider, error) {
	f.mu.RLock()
	creator, exists := f.creators[providerType]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, providerType)
	}

	creds, err := ParseCredentials(providerType, rawCredentials)
	if err != nil {
		return nil, err
	}

	provider, err := creator(ProviderConfig{
		Type:        providerType,
		Credentials: creds,
		BaseURL:     f.config.BaseURLs[providerType],
		HTTPClient:  f.config.HTTPClient,
		MaxTokens:   f.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %s: %w", providerType, err)
	}

	return provider, nil
}

// SupportedTypes returns the supported provider types in display order
func (f *ProviderFactory) SupportedTypes() []models.ProviderType {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]models.ProviderType, 0, len(f.creators))
	for _, t := range models.AllProviderTypes() {
		if _, ok := f.creators[t]; ok {
			types = append(types, t)
		}
	}
	return types
}
