package providers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"llm_compare/internal/models"
)

const (
	yandexDefaultBaseURL   = "https://llm.api.cloud.yandex.net"
	yandexDefaultMaxTokens = 2000
)

// Foundation Models has no listing endpoint
var yandexModels = []string{"llama", "llama-lite", "yandexgpt", "yandexgpt-32k", "yandexgpt-lite"}

// YandexProvider implements the Provider interface for YandexGPT foundation models
type YandexProvider struct {
	backend   httpBackend
	baseURL   string
	folderID  string
	maxTokens int
}

// NewYandexProvider creates a provider for folderId%apiKey credentials
func NewYandexProvider(config ProviderConfig) (Provider, error) {
	creds := config.Credentials
	if creds.FolderID == "" || creds.APIKey == "" {
		return nil, fmt.Errorf("folder id and api key are required for Yandex provider")
	}

	baseURL := yandexDefaultBaseURL
	if config.BaseURL != "" {
		baseURL = config.BaseURL
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = yandexDefaultMaxTokens
	}

	auth := NewAPIKeyAuth(creds.APIKey, "Authorization", "Api-Key ").
		WithHeader("x-folder-id", creds.FolderID)

	return &YandexProvider{
		backend:   newHTTPBackend(config, auth),
		baseURL:   strings.TrimRight(baseURL, "/"),
		folderID:  creds.FolderID,
		maxTokens: maxTokens,
	}, nil
}

// Type returns the provider type
func (p *YandexProvider) Type() models.ProviderType {
	return models.ProviderTypeYandex
}

type yandexMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type yandexRequest struct {
	ModelURI          string `json:"modelUri"`
	CompletionOptions struct {
		Stream    bool   `json:"stream"`
		MaxTokens string `json:"maxTokens"`
	} `json:"completionOptions"`
	Messages []yandexMessage `json:"messages"`
}

type yandexResponse struct {
	Result struct {
		Alternatives []struct {
			Message yandexMessage `json:"message"`
			Status  string        `json:"status"`
		} `json:"alternatives"`
		// token counts are int64 values encoded as strings
		Usage *struct {
			InputTextTokens  string `json:"inputTextTokens"`
			CompletionTokens string `json:"completionTokens"`
			TotalTokens      string `json:"totalTokens"`
		} `json:"usage"`
	} `json:"result"`
}

// modelURI expands a short model name into gpt://<folder>/<model>/latest
func (p *YandexProvider) modelURI(model string) string {
	if strings.Contains(model, "://") {
		return model
	}
	if strings.Contains(model, "/") {
		return fmt.Sprintf("gpt://%s/%s", p.folderID, model)
	}
	return fmt.Sprintf("gpt://%s/%s/latest", p.folderID, model)
}

// GenerateText sends a completion request
func (p *YandexProvider) GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	var body yandexRequest
	body.ModelURI = p.modelURI(req.Model)
	body.CompletionOptions.MaxTokens = strconv.Itoa(maxTokens)
	if req.SystemInstructions != "" {
		body.Messages = append(body.Messages, yandexMessage{Role: "system", Text: req.SystemInstructions})
	}
	body.Messages = append(body.Messages, yandexMessage{Role: "user", Text: req.Prompt})

	out, err := doJSON[yandexResponse](ctx, &p.backend, http.MethodPost, p.baseURL+"/foundationModels/v1/completion", body)
	if err != nil {
		return nil, err
	}
	if len(out.Result.Alternatives) == 0 {
		return nil, ErrEmptyCompletion
	}

	resp := &TextResponse{Text: out.Result.Alternatives[0].Message.Text, ProviderLatency: time.Since(start)}
	if u := out.Result.Usage; u != nil {
		resp.Usage = &Usage{
			InputTokens:  atoiOrZero(u.InputTextTokens),
			OutputTokens: atoiOrZero(u.CompletionTokens),
			TotalTokens:  atoiOrZero(u.TotalTokens),
		}
	}
	return resp, nil
}

// ListModels returns the fixed set of foundation models
func (p *YandexProvider) ListModels(ctx context.Context) ([]string, error) {
	out := make([]string, len(yandexModels))
	copy(out, yandexModels)
	return out, nil
}

// Close cleans up resources
func (p *YandexProvider) Close() error {
	return p.backend.close()
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
