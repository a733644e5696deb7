package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"llm_compare/internal/models"
)

// Bedrock runtime and control plane share the "bedrock" signing name
const bedrockSigningName = "bedrock"

// BedrockProvider implements the Provider interface for AWS Bedrock using the
// Converse API, signed with the caller's access keys
type BedrockProvider struct {
	backend    httpBackend
	runtimeURL string
	controlURL string
	maxTokens  int
}

// NewBedrockProvider creates a provider for accessKeyId%secretAccessKey%sessionToken%region credentials
func NewBedrockProvider(config ProviderConfig) (Provider, error) {
	creds := config.Credentials
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" || creds.Region == "" {
		return nil, fmt.Errorf("access key id, secret access key and region are required for Bedrock provider")
	}

	runtimeURL := fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", creds.Region)
	controlURL := fmt.Sprintf("https://bedrock.%s.amazonaws.com", creds.Region)
	if config.BaseURL != "" {
		runtimeURL = config.BaseURL
		controlURL = config.BaseURL
	}

	auth := NewSigV4Auth(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken, bedrockSigningName, creds.Region)

	return &BedrockProvider{
		backend:    newHTTPBackend(config, auth),
		runtimeURL: strings.TrimRight(runtimeURL, "/"),
		controlURL: strings.TrimRight(controlURL, "/"),
		maxTokens:  config.MaxTokens,
	}, nil
}

// Type returns the provider type
func (p *BedrockProvider) Type() models.ProviderType {
	return models.ProviderTypeBedrock
}

type bedrockText struct {
	Text string `json:"text"`
}

type bedrockMessage struct {
	Role    string        `json:"role"`
	Content []bedrockText `json:"content"`
}

type bedrockConverseRequest struct {
	Messages        []bedrockMessage `json:"messages"`
	System          []bedrockText    `json:"system,omitempty"`
	InferenceConfig *struct {
		MaxTokens int `json:"maxTokens"`
	} `json:"inferenceConfig,omitempty"`
}

type bedrockConverseResponse struct {
	Output struct {
		Message *struct {
			Content []struct {
				Text *string `json:"text"`
			} `json:"content"`
		} `json:"message"`
	} `json:"output"`
	Usage *struct {
		InputTokens  int `json:"inputTokens"`
		OutputTokens int `json:"outputTokens"`
		TotalTokens  int `json:"totalTokens"`
	} `json:"usage"`
}

// escapeModelID keeps version suffixes such as ":0" percent-encoded in the path
func escapeModelID(modelID string) string {
	return strings.ReplaceAll(url.PathEscape(modelID), ":", "%3A")
}

// GenerateText sends a Converse request
func (p *BedrockProvider) GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error) {
	start := time.Now()

	body := bedrockConverseRequest{
		Messages: []bedrockMessage{{Role: "user", Content: []bedrockText{{Text: req.Prompt}}}},
	}
	if req.SystemInstructions != "" {
		body.System = []bedrockText{{Text: req.SystemInstructions}}
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	if maxTokens > 0 {
		body.InferenceConfig = &struct {
			MaxTokens int `json:"maxTokens"`
		}{MaxTokens: maxTokens}
	}

	endpoint := fmt.Sprintf("%s/model/%s/converse", p.runtimeURL, escapeModelID(req.Model))
	out, err := doJSON[bedrockConverseResponse](ctx, &p.backend, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	if out.Output.Message == nil {
		return nil, ErrEmptyCompletion
	}

	var text strings.Builder
	found := false
	for _, block := range out.Output.Message.Content {
		if block.Text != nil {
			text.WriteString(*block.Text)
			found = true
		}
	}
	if !found {
		return nil, ErrEmptyCompletion
	}

	resp := &TextResponse{Text: text.String(), ProviderLatency: time.Since(start)}
	if out.Usage != nil {
		resp.Usage = &Usage{
			InputTokens:  out.Usage.InputTokens,
			OutputTokens: out.Usage.OutputTokens,
			TotalTokens:  out.Usage.TotalTokens,
		}
	}
	return resp, nil
}

type bedrockModelList struct {
	ModelSummaries []struct {
		ModelID string `json:"modelId"`
	} `json:"modelSummaries"`
}

// ListModels lists the text-output foundation models in the region
func (p *BedrockProvider) ListModels(ctx context.Context) ([]string, error) {
	out, err := doJSON[bedrockModelList](ctx, &p.backend, http.MethodGet, p.controlURL+"/foundation-models?byOutputModality=TEXT", nil)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(out.ModelSummaries))
	for _, m := range out.ModelSummaries {
		ids = append(ids, m.ModelID)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close cleans up resources
func (p *BedrockProvider) Close() error {
	return p.backend.close()
}
