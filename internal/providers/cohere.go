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

const cohereDefaultBaseURL = "https://api.cohere.com"

// CohereProvider implements the Provider interface for the Cohere v2 chat API
type CohereProvider struct {
	backend   httpBackend
	baseURL   string
	maxTokens int
}

// NewCohereProvider creates a new Cohere provider instance
func NewCohereProvider(config ProviderConfig) (Provider, error) {
	if config.Credentials.APIKey == "" {
		return nil, fmt.Errorf("api key is required for Cohere provider")
	}

	baseURL := cohereDefaultBaseURL
	if config.BaseURL != "" {
		baseURL = config.BaseURL
	}

	return &CohereProvider{
		backend:   newHTTPBackend(config, NewBearerAuth(config.Credentials.APIKey)),
		baseURL:   strings.TrimRight(baseURL, "/"),
		maxTokens: config.MaxTokens,
	}, nil
}

// Type returns the provider type
func (p *CohereProvider) Type() models.ProviderType {
	return models.ProviderTypeCohere
}

type cohereResponse struct {
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Usage *struct {
		Tokens *struct {
			InputTokens  float64 `json:"input_tokens"`
			OutputTokens float64 `json:"output_tokens"`
		} `json:"tokens"`
		BilledUnits *struct {
			InputTokens  float64 `json:"input_tokens"`
			OutputTokens float64 `json:"output_tokens"`
		} `json:"billed_units"`
	} `json:"usage"`
}

// GenerateText sends a chat request
func (p *CohereProvider) GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error) {
	start := time.Now()

	body := newChatCompletionRequest(req, p.maxTokens, false)
	out, err := doJSON[cohereResponse](ctx, &p.backend, http.MethodPost, p.baseURL+"/v2/chat", body)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	found := false
	for _, c := range out.Message.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
			found = true
		}
	}
	if !found {
		return nil, ErrEmptyCompletion
	}

	resp := &TextResponse{Text: text.String(), ProviderLatency: time.Since(start)}
	if out.Usage != nil {
		switch {
		case out.Usage.Tokens != nil:
			resp.Usage = &Usage{
				InputTokens:  int(out.Usage.Tokens.InputTokens),
				OutputTokens: int(out.Usage.Tokens.OutputTokens),
			}
		case out.Usage.BilledUnits != nil:
			resp.Usage = &Usage{
				InputTokens:  int(out.Usage.BilledUnits.InputTokens),
				OutputTokens: int(out.Usage.BilledUnits.OutputTokens),
			}
		}
	}
	return resp, nil
}

type cohereModelList struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels lists the chat-capable models
func (p *CohereProvider) ListModels(ctx context.Context) ([]string, error) {
	out, err := doJSON[cohereModelList](ctx, &p.backend, http.MethodGet, p.baseURL+"/v1/models?endpoint=chat&page_size=1000", nil)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Close cleans up resources
func (p *CohereProvider) Close() error {
	return p.backend.close()
}
