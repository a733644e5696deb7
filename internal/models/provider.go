package models

import (
	"fmt"
	"strings"
)

// ProviderType enumerates supported provider types.
type ProviderType string

const (
	ProviderTypeAI21        ProviderType = "AI21"
	ProviderTypeAnthropic   ProviderType = "ANTHROPIC"
	ProviderTypeAzureOpenAI ProviderType = "AZURE_OPENAI"
	ProviderTypeBedrock     ProviderType = "BEDROCK"
	ProviderTypeCerebras    ProviderType = "CEREBRAS"
	ProviderTypeCohere      ProviderType = "COHERE"
	ProviderTypeDeepSeek    ProviderType = "DEEP_SEEK"
	ProviderTypeGoogle      ProviderType = "GOOGLE"
	ProviderTypeGrok        ProviderType = "GROK"
	ProviderTypeMistral     ProviderType = "MISTRAL"
	ProviderTypeOpenAI      ProviderType = "OPEN_AI"
	ProviderTypeSambaNova   ProviderType = "SAMBA_NOVA"
	ProviderTypeTogetherAI  ProviderType = "TOGETHER_AI"
	ProviderTypeYandex      ProviderType = "YANDEX"
)

// allProviderTypes is kept in display order
var allProviderTypes = []ProviderType{
	ProviderTypeAI21,
	ProviderTypeAnthropic,
	ProviderTypeAzureOpenAI,
	ProviderTypeBedrock,
	ProviderTypeCerebras,
	ProviderTypeCohere,
	ProviderTypeDeepSeek,
	ProviderTypeGoogle,
	ProviderTypeGrok,
	ProviderTypeMistral,
	ProviderTypeOpenAI,
	ProviderTypeSambaNova,
	ProviderTypeTogetherAI,
	ProviderTypeYandex,
}

var defaultModels = map[ProviderType]string{
	ProviderTypeAI21:        "jamba-large",
	ProviderTypeAnthropic:   "claude-3-5-sonnet-20241022",
	ProviderTypeAzureOpenAI: "gpt-4o-mini",
	ProviderTypeBedrock:     "anthropic.claude-3-5-sonnet-20240620-v1:0",
	ProviderTypeCerebras:    "llama-3.3-70b",
	ProviderTypeCohere:      "command-r",
	ProviderTypeDeepSeek:    "deepseek-chat",
	ProviderTypeGoogle:      "models/gemini-2.0-pro-exp",
	ProviderTypeGrok:        "grok-2-1212",
	ProviderTypeMistral:     "mistral-large-latest",
	ProviderTypeOpenAI:      "o1-mini",
	ProviderTypeSambaNova:   "Meta-Llama-3.3-70B-Instruct",
	ProviderTypeTogetherAI:  "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free",
	ProviderTypeYandex:      "yandexgpt",
}

// AllProviderTypes returns every supported provider type in a stable order
func AllProviderTypes() []ProviderType {
	out := make([]ProviderType, len(allProviderTypes))
	copy(out, allProviderTypes)
	return out
}

// ParseProviderType resolves a provider name case-insensitively
func ParseProviderType(name string) (ProviderType, error) {
	candidate := ProviderType(strings.ToUpper(strings.TrimSpace(name)))
	if !candidate.IsValid() {
		return "", fmt.Errorf("unknown provider type %q", name)
	}
	return candidate, nil
}

// IsValid reports whether t is one of the supported provider types
func (t ProviderType) IsValid() bool {
	_, ok := defaultModels[t]
	return ok
}

// DefaultModel returns the model a provider starts with before any selection is made
func (t ProviderType) DefaultModel() string {
	return defaultModels[t]
}

func (t ProviderType) String() string {
	return string(t)
}

// DefaultModelSelection returns a fresh selection map seeded with every provider's default model
func DefaultModelSelection() map[ProviderType]string {
	out := make(map[ProviderType]string, len(defaultModels))
	for t, m := range defaultModels {
		out[t] = m
	}
	return out
}
