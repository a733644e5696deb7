package providers

import (
	"context"
	"net/http"
	"time"

	"llm_compare/internal/models"
)

// TextRequest is a single-turn generation request
type TextRequest struct {
	Model              string // provider-specific model name
	Prompt             string
	SystemInstructions string // may be empty
	MaxTokens          int    // 0 lets the vendor decide where the API allows it
}

// TextResponse is a normalized generation result
type TextResponse struct {
	Text            string
	Usage           *Usage // nil when the vendor does not report usage
	ProviderLatency time.Duration
}

// Usage holds the token counts reported by a vendor
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Total returns the reported total, falling back to input+output
func (u *Usage) Total() int {
	if u == nil {
		return 0
	}
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.InputTokens + u.OutputTokens
}

// TotalTokens returns the total token usage of the response, 0 when unknown
func (r *TextResponse) TotalTokens() int {
	if r == nil {
		return 0
	}
	return r.Usage.Total()
}

// Provider is implemented by each concrete vendor client (OpenAI, Anthropic, Bedrock, ...).
type Provider interface {
	// Type returns the provider type this client talks to
	Type() models.ProviderType

	// GenerateText sends a single-turn prompt and returns the generated text
	GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error)

	// ListModels returns the model identifiers available to these credentials
	ListModels(ctx context.Context) ([]string, error)

	// Close performs cleanup when the provider is no longer needed
	Close() error
}

// Authenticator handles authentication for a provider.
// Different providers implement different authentication mechanisms:
// - Simple: API key in a header (OpenAI, Anthropic, Azure, Yandex)
// - Signed: AWS Signature V4 computed per request (Bedrock)
type Authenticator interface {
	// Authenticate prepares authentication for a request
	Authenticate(ctx context.Context) (AuthContext, error)
}

// AuthContext holds authentication information for a request
type AuthContext interface {
	// ApplyToRequest applies authentication to an HTTP request
	ApplyToRequest(ctx context.Context, req any) error
}

// ProviderConfig holds configuration for creating a provider instance
type ProviderConfig struct {
	Type        models.ProviderType
	Credentials Credentials  // parsed credentials
	BaseURL     string       // overrides the vendor endpoint when set
	HTTPClient  *http.Client // shared client; nil means the provider creates its own
	MaxTokens   int
}

// Factory creates provider instances from raw credential strings
type Factory interface {
	// CreateProvider parses the credentials and creates a new provider instance
	CreateProvider(providerType models.ProviderType, rawCredentials string) (Provider, error)

	// SupportedTypes returns the list of supported provider types
	SupportedTypes() []models.ProviderType
}
