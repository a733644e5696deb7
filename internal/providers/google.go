package providers

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"time"

	"llm_compare/internal/models"
)

const googleDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GoogleProvider implements the Provider interface for the Gemini API
type GoogleProvider struct {
	backend   httpBackend
	baseURL   string
	maxTokens int
}

// NewGoogleProvider creates a new Gemini provider instance
func NewGoogleProvider(config ProviderConfig) (Provider, error) {
	if config.Credentials.APIKey == "" {
		return nil, fmt.Errorf("api key is required for Google provider")
	}

	baseURL := googleDefaultBaseURL
	if config.BaseURL != "" {
		baseURL = config.BaseURL
	}

	return &GoogleProvider{
		backend:   newHTTPBackend(config, NewAPIKeyAuth(config.Credentials.APIKey, "x-goog-api-key", "")),
		baseURL:   strings.TrimRight(baseURL, "/"),
		maxTokens: config.MaxTokens,
	}, nil
}

// Type returns the provider type
func (p *GoogleProvider) Type() models.ProviderType {
	return models.ProviderTypeGoogle
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// normalizeGeminiModel accepts both "gemini-x" and "models/gemini-x"
func normalizeGeminiModel(model string) string {
	if strings.HasPrefix(model, "models/") || strings.HasPrefix(model, "tunedModels/") {
		return model
	}
	return "models/" + model
}

// GenerateText calls generateContent on the selected model
func (p *GoogleProvider) GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error) {
	start := time.Now()

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
	}
	if req.SystemInstructions != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemInstructions}}}
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	if maxTokens > 0 {
		body.GenerationConfig = &geminiGenerationConfig{MaxOutputTokens: maxTokens}
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent", p.baseURL, normalizeGeminiModel(req.Model))
	out, err := doJSON[geminiResponse](ctx, &p.backend, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}

	if len(out.Candidates) == 0 {
		if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("prompt blocked: %s", out.PromptFeedback.BlockReason)
		}
		return nil, ErrEmptyCompletion
	}

	var text strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	resp := &TextResponse{Text: text.String(), ProviderLatency: time.Since(start)}
	if out.UsageMetadata != nil {
		resp.Usage = &Usage{
			InputTokens:  out.UsageMetadata.PromptTokenCount,
			OutputTokens: out.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  out.UsageMetadata.TotalTokenCount,
		}
	}
	return resp, nil
}

type geminiModelList struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

// ListModels lists the models that support generateContent
func (p *GoogleProvider) ListModels(ctx context.Context) ([]string, error) {
	out, err := doJSON[geminiModelList](ctx, &p.backend, http.MethodGet, p.baseURL+"/models?pageSize=1000", nil)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		if len(m.SupportedGenerationMethods) > 0 && !slices.Contains(m.SupportedGenerationMethods, "generateContent") {
			continue
		}
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Close cleans up resources
func (p *GoogleProvider) Close() error {
	return p.backend.close()
}
