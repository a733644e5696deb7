package providers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"llm_compare/internal/models"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	// the Messages API requires max_tokens
	anthropicDefaultMaxTokens = 1024
)

// AnthropicProvider implements the Provider interface for the Anthropic Messages API
type AnthropicProvider struct {
	backend   httpBackend
	baseURL   string
	maxTokens int
}

// NewAnthropicProvider creates a new Anthropic provider instance
func NewAnthropicProvider(config ProviderConfig) (Provider, error) {
	if config.Credentials.APIKey == "" {
		return nil, fmt.Errorf("api key is required for Anthropic provider")
	}

	baseURL := anthropicDefaultBaseURL
	if config.BaseURL != "" {
		baseURL = config.BaseURL
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	auth := NewAPIKeyAuth(config.Credentials.APIKey, "x-api-key", "").
		WithHeader("anthropic-version", anthropicVersion)

	return &AnthropicProvider{
		backend:   newHTTPBackend(config, auth),
		baseURL:   strings.TrimRight(baseURL, "/"),
		maxTokens: maxTokens,
	}, nil
}

// Type returns the provider type
func (p *AnthropicProvider) Type() models.ProviderType {
	return models.ProviderTypeAnthropic
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// GenerateText sends a message request
func (p *AnthropicProvider) GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	body := anthropicRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		System:    req.SystemInstructions,
		Messages:  []chatMessage{{Role: "user", Content: req.Prompt}},
	}

	out, err := doJSON[anthropicResponse](ctx, &p.backend, http.MethodPost, p.baseURL+"/v1/messages", body)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	found := false
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
			found = true
		}
	}
	if !found {
		return nil, ErrEmptyCompletion
	}

	resp := &TextResponse{Text: text.String(), ProviderLatency: time.Since(start)}
	if out.Usage != nil {
		resp.Usage = &Usage{InputTokens: out.Usage.InputTokens, OutputTokens: out.Usage.OutputTokens}
	}
	return resp, nil
}

// ListModels lists the models available to the API key
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]string, error) {
	out, err := doJSON[modelList](ctx, &p.backend, http.MethodGet, p.baseURL+"/v1/models?limit=1000", nil)
	if err != nil {
		return nil, err
	}
	ids := out.ids()
	sort.Strings(ids)
	return ids, nil
}

// Close cleans up resources
func (p *AnthropicProvider) Close() error {
	return p.backend.close()
}
