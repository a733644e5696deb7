package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_compare/internal/models"
)

func TestOpenAIProviderGenerateText(t *testing.T) {
	p := newTestProvider(t, models.ProviderTypeOpenAI, "sk-test", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body := decodeBody(t, r)
		assert.Equal(t, "gpt-4o", body["model"])
		messages := body["messages"].([]any)
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]any)["role"])
		assert.Equal(t, "be brief", messages[0].(map[string]any)["content"])
		assert.Equal(t, "hello", messages[1].(map[string]any)["content"])
		_, hasMax := body["max_tokens"]
		assert.False(t, hasMax)

		writeJSON(w, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"hi there"}}],
			"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`)
	})

	resp, err := p.GenerateText(context.Background(), TextRequest{Model: "gpt-4o", Prompt: "hello", SystemInstructions: "be brief"})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Text)
	assert.Equal(t, 8, resp.TotalTokens())
	assert.Equal(t, models.ProviderTypeOpenAI, p.Type())
}

func TestOpenAIProviderOmitsEmptySystemPrompt(t *testing.T) {
	p := newTestProvider(t, models.ProviderTypeDeepSeek, "ds-key", func(w http.ResponseWriter, r *http.Request) {
		messages := decodeBody(t, r)["messages"].([]any)
		require.Len(t, messages, 1)
		assert.Equal(t, "user", messages[0].(map[string]any)["role"])
		writeJSON(w, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`)
	})

	resp, err := p.GenerateText(context.Background(), TextRequest{Model: "deepseek-chat", Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	// no usage reported
	assert.Nil(t, resp.Usage)
	assert.Equal(t, 0, resp.TotalTokens())
}

func TestOpenAIProviderUsageFallbacks(t *testing.T) {
	p := newTestProvider(t, models.ProviderTypeMistral, "m-key", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}],"usage":{"input_tokens":4,"output_tokens":6}}`)
	})

	resp, err := p.GenerateText(context.Background(), TextRequest{Model: "mistral-large-latest", Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, 10, resp.TotalTokens())
}

func TestOpenAIProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		authErr bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key"}}`, authErr: true},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "null content", status: http.StatusOK, body: `{"choices":[{"message":{"content":null}}]}`},
		{name: "invalid json", status: http.StatusOK, body: `{"choices":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, models.ProviderTypeGrok, "xai-key", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := p.GenerateText(context.Background(), TextRequest{Model: "grok-2-1212", Prompt: "q"})
			require.Error(t, err)
			assert.Equal(t, tt.authErr, IsAuthError(err))
		})
	}
}

func TestOpenAIProviderListModels(t *testing.T) {
	p := newTestProvider(t, models.ProviderTypeCerebras, "c-key", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/models", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"object":"list","data":[{"id":"llama3.1-8b"},{"id":"llama-3.3-70b"}]}`)
	})

	names, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama-3.3-70b", "llama3.1-8b"}, names)
}

func TestTogetherListModelsBareArray(t *testing.T) {
	p := newTestProvider(t, models.ProviderTypeTogetherAI, "t-key", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":"meta-llama/Llama-3.3-70B-Instruct-Turbo-Free","type":"chat"},{"id":"mistralai/Mixtral-8x7B"}]`)
	})

	names, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"meta-llama/Llama-3.3-70B-Instruct-Turbo-Free", "mistralai/Mixtral-8x7B"}, names)
}

func TestAI21ListModelsIsStatic(t *testing.T) {
	p := newTestProvider(t, models.ProviderTypeAI21, "ai21-key", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	})

	names, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Contains(t, names, "jamba-large")

	// callers may mutate the returned slice
	names[0] = "changed"
	again, _ := p.ListModels(context.Background())
	assert.NotEqual(t, "changed", again[0])
}

func TestOpenAIProviderMaxTokens(t *testing.T) {
	srvCalled := false
	p := newTestProvider(t, models.ProviderTypeSambaNova, "s-key", func(w http.ResponseWriter, r *http.Request) {
		srvCalled = true
		assert.Equal(t, float64(64), decodeBody(t, r)["max_tokens"])
		writeJSON(w, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`)
	})

	_, err := p.GenerateText(context.Background(), TextRequest{Model: "m", Prompt: "q", MaxTokens: 64})
	require.NoError(t, err)
	assert.True(t, srvCalled)
}

func TestOpenAIProviderDefaultModelRequest(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body = decodeBody(t, r)
		writeJSON(w, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	t.Cleanup(srv.Close)

	factory := NewProviderFactory(FactoryConfig{
		HTTPClient: srv.Client(),
		BaseURLs:   map[models.ProviderType]string{models.ProviderTypeOpenAI: srv.URL},
		MaxTokens:  1024,
	})
	p, err := factory.CreateProvider(models.ProviderTypeOpenAI, "sk-test")
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	model := models.ProviderTypeOpenAI.DefaultModel()
	_, err = p.GenerateText(context.Background(), TextRequest{Model: model, Prompt: "hello", SystemInstructions: "be brief"})
	require.NoError(t, err)

	assert.Equal(t, model, body["model"])
	assert.Equal(t, float64(1024), body["max_completion_tokens"])
	assert.NotContains(t, body, "max_tokens")

	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
	assert.Equal(t, "be brief\n\nhello", messages[0].(map[string]any)["content"])
}

func TestChatCompletionRequestDialects(t *testing.T) {
	tests := []struct {
		name             string
		model            string
		completionTokens bool
		wantRoles        []string
		wantMax          int
		wantCompletion   int
	}{
		{name: "chat model", model: "gpt-4o", wantRoles: []string{"system", "user"}, wantMax: 32},
		{name: "chat model on openai", model: "gpt-4o", completionTokens: true,
			wantRoles: []string{"system", "user"}, wantCompletion: 32},
		{name: "reasoning model", model: "o3-mini", wantRoles: []string{"developer", "user"}, wantCompletion: 32},
		{name: "first reasoning release", model: "o1-preview", wantRoles: []string{"user"}, wantCompletion: 32},
		{name: "vendor prefixed model", model: "openai/o4-mini", wantRoles: []string{"developer", "user"}, wantCompletion: 32},
		{name: "model starting with o", model: "open-mistral-7b", wantRoles: []string{"system", "user"}, wantMax: 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newChatCompletionRequest(TextRequest{Model: tt.model, Prompt: "q", SystemInstructions: "s"}, 32, tt.completionTokens)
			roles := make([]string, 0, len(req.Messages))
			for _, m := range req.Messages {
				roles = append(roles, m.Role)
			}
			assert.Equal(t, tt.wantRoles, roles)
			assert.Equal(t, tt.wantMax, req.MaxTokens)
			assert.Equal(t, tt.wantCompletion, req.MaxCompletionTokens)
		})
	}
}
