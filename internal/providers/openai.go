package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"llm_compare/internal/models"
)

// openAICompatibleProfile describes a vendor speaking the OpenAI chat completions dialect
type openAICompatibleProfile struct {
	baseURL string
	// staticModels is served instead of calling /models for vendors without a listing endpoint
	staticModels []string
	// completionTokens sends max_completion_tokens, which OpenAI requires for o-series models
	completionTokens bool
}

var openAICompatibleProfiles = map[models.ProviderType]openAICompatibleProfile{
	models.ProviderTypeOpenAI:     {baseURL: "https://api.openai.com/v1", completionTokens: true},
	models.ProviderTypeDeepSeek:   {baseURL: "https://api.deepseek.com/v1"},
	models.ProviderTypeGrok:       {baseURL: "https://api.x.ai/v1"},
	models.ProviderTypeMistral:    {baseURL: "https://api.mistral.ai/v1"},
	models.ProviderTypeCerebras:   {baseURL: "https://api.cerebras.ai/v1"},
	models.ProviderTypeSambaNova:  {baseURL: "https://api.sambanova.ai/v1"},
	models.ProviderTypeTogetherAI: {baseURL: "https://api.together.xyz/v1"},
	models.ProviderTypeAI21: {
		baseURL:      "https://api.ai21.com/studio/v1",
		staticModels: []string{"jamba-large", "jamba-mini"},
	},
}

// OpenAIProvider implements the Provider interface for OpenAI and the vendors
// exposing an OpenAI-compatible API
type OpenAIProvider struct {
	providerType models.ProviderType
	backend      httpBackend
	baseURL      string
	staticModels []string
	maxTokens    int

	completionTokens bool
}

// NewOpenAIProvider creates a new OpenAI-compatible provider instance
func NewOpenAIProvider(config ProviderConfig) (Provider, error) {
	profile, ok := openAICompatibleProfiles[config.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not OpenAI-compatible", ErrUnsupportedProvider, config.Type)
	}
	if config.Credentials.APIKey == "" {
		return nil, fmt.Errorf("api key is required for %s provider", config.Type)
	}

	baseURL := profile.baseURL
	if config.BaseURL != "" {
		baseURL = config.BaseURL
	}

	return &OpenAIProvider{
		providerType: config.Type,
		backend:      newHTTPBackend(config, NewBearerAuth(config.Credentials.APIKey)),
		baseURL:      strings.TrimRight(baseURL, "/"),
		staticModels: profile.staticModels,
		maxTokens:    config.MaxTokens,

		completionTokens: profile.completionTokens,
	}, nil
}

// Type returns the provider type
func (p *OpenAIProvider) Type() models.ProviderType {
	return p.providerType
}

// GenerateText sends a chat completion request
func (p *OpenAIProvider) GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error) {
	start := time.Now()

	body := newChatCompletionRequest(req, p.maxTokens, p.completionTokens)
	out, err := doJSON[chatCompletionResponse](ctx, &p.backend, http.MethodPost, p.baseURL+"/chat/completions", body)
	if err != nil {
		return nil, err
	}
	return out.toTextResponse(time.Since(start))
}

// ListModels lists the models available to the API key
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]string, error) {
	if p.staticModels != nil {
		out := make([]string, len(p.staticModels))
		copy(out, p.staticModels)
		return out, nil
	}

	out, err := doJSON[modelList](ctx, &p.backend, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	return out.ids(), nil
}

// Close cleans up resources
func (p *OpenAIProvider) Close() error {
	return p.backend.close()
}

// Chat completions wire format, shared with Azure OpenAI.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model               string        `json:"model,omitempty"`
	Messages            []chatMessage `json:"messages"`
	MaxTokens           int           `json:"max_tokens,omitempty"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
}

// newChatCompletionRequest builds a chat completion body. Reasoning models get
// max_completion_tokens and take system instructions as a developer message;
// the first o1 releases accept no instructions message at all, so the
// instructions are prepended to the prompt instead.
func newChatCompletionRequest(req TextRequest, defaultMaxTokens int, completionTokens bool) chatCompletionRequest {
	reasoning := isReasoningModel(req.Model)

	prompt := req.Prompt
	messages := make([]chatMessage, 0, 2)
	if req.SystemInstructions != "" {
		switch {
		case !reasoning:
			messages = append(messages, chatMessage{Role: "system", Content: req.SystemInstructions})
		case acceptsInstructionsMessage(req.Model):
			messages = append(messages, chatMessage{Role: "developer", Content: req.SystemInstructions})
		default:
			prompt = req.SystemInstructions + "\n\n" + req.Prompt
		}
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	out := chatCompletionRequest{Model: req.Model, Messages: messages}
	if completionTokens || reasoning {
		out.MaxCompletionTokens = maxTokens
	} else {
		out.MaxTokens = maxTokens
	}
	return out
}

// isReasoningModel reports OpenAI o-series models (o1, o3-mini, o4-mini...)
func isReasoningModel(model string) bool {
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	return len(model) >= 2 && model[0] == 'o' && model[1] >= '0' && model[1] <= '9'
}

func acceptsInstructionsMessage(model string) bool {
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	return !strings.HasPrefix(model, "o1-mini") && !strings.HasPrefix(model, "o1-preview")
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		// OpenAI format
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
		// Alternative field names used by some compatible vendors
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (r *chatCompletionResponse) toTextResponse(latency time.Duration) (*TextResponse, error) {
	if len(r.Choices) == 0 || r.Choices[0].Message.Content == nil {
		return nil, ErrEmptyCompletion
	}

	resp := &TextResponse{Text: *r.Choices[0].Message.Content, ProviderLatency: latency}
	if r.Usage != nil {
		usage := &Usage{
			InputTokens:  r.Usage.PromptTokens,
			OutputTokens: r.Usage.CompletionTokens,
			TotalTokens:  r.Usage.TotalTokens,
		}
		if usage.InputTokens == 0 && r.Usage.InputTokens > 0 {
			usage.InputTokens = r.Usage.InputTokens
		}
		if usage.OutputTokens == 0 && r.Usage.OutputTokens > 0 {
			usage.OutputTokens = r.Usage.OutputTokens
		}
		resp.Usage = usage
	}
	return resp, nil
}

type modelEntry struct {
	ID string `json:"id"`
}

// modelList accepts both {"data": [...]} and a bare array (Together AI)
type modelList struct {
	Data []modelEntry `json:"data"`
}

func (l *modelList) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(b, &l.Data)
	}
	type plain modelList
	return json.Unmarshal(b, (*plain)(l))
}

func (l *modelList) ids() []string {
	ids := make([]string, 0, len(l.Data))
	for _, m := range l.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
