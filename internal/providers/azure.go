package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"llm_compare/internal/models"
)

const azureAPIVersion = "2024-10-21"

// AzureOpenAIProvider talks to an Azure OpenAI resource; the model name is the deployment name
type AzureOpenAIProvider struct {
	backend   httpBackend
	baseURL   string
	maxTokens int
}

// NewAzureOpenAIProvider creates a provider for resourceName%apiKey credentials
func NewAzureOpenAIProvider(config ProviderConfig) (Provider, error) {
	creds := config.Credentials
	if creds.ResourceName == "" || creds.APIKey == "" {
		return nil, fmt.Errorf("resource name and api key are required for Azure OpenAI provider")
	}

	baseURL := fmt.Sprintf("https://%s.openai.azure.com", creds.ResourceName)
	if config.BaseURL != "" {
		baseURL = config.BaseURL
	}

	return &AzureOpenAIProvider{
		backend:   newHTTPBackend(config, NewAPIKeyAuth(creds.APIKey, "api-key", "")),
		baseURL:   strings.TrimRight(baseURL, "/"),
		maxTokens: config.MaxTokens,
	}, nil
}

// Type returns the provider type
func (p *AzureOpenAIProvider) Type() models.ProviderType {
	return models.ProviderTypeAzureOpenAI
}

// GenerateText sends a chat completion request to the deployment named by req.Model
func (p *AzureOpenAIProvider) GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error) {
	start := time.Now()

	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.baseURL, url.PathEscape(req.Model), azureAPIVersion)

	body := newChatCompletionRequest(req, p.maxTokens, false)
	body.Model = ""
	out, err := doJSON[chatCompletionResponse](ctx, &p.backend, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	return out.toTextResponse(time.Since(start))
}

// ListModels lists the models known to the resource
func (p *AzureOpenAIProvider) ListModels(ctx context.Context) ([]string, error) {
	endpoint := fmt.Sprintf("%s/openai/models?api-version=%s", p.baseURL, azureAPIVersion)
	out, err := doJSON[modelList](ctx, &p.backend, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return out.ids(), nil
}

// Close cleans up resources
func (p *AzureOpenAIProvider) Close() error {
	return p.backend.close()
}
