package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_compare/internal/models"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "abc", n: 5, want: "abc"},
		{name: "ascii", in: "abcdef", n: 3, want: "abc..."},
		// "é" is two bytes; cutting at 2 would split it
		{name: "inside rune", in: "aébc", n: 2, want: "a..."},
		{name: "rune boundary", in: "aébc", n: 3, want: "aé..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestErrorBodyPreviewIsValidUTF8(t *testing.T) {
	// 499 ASCII bytes followed by multi-byte runes straddle the preview limit
	payload := strings.Repeat("x", maxErrorBodyPreview-1) + strings.Repeat("ж", 10)
	p := newTestProvider(t, models.ProviderTypeGrok, "xai-key", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(payload))
	})

	_, err := p.GenerateText(context.Background(), TextRequest{Model: "grok-2", Prompt: "q"})
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, utf8.ValidString(apiErr.Body))
}
