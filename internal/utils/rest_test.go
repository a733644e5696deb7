package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		message string
	}{
		{name: "bad request", code: http.StatusBadRequest, message: "prompt is required"},
		{name: "unauthorized", code: http.StatusUnauthorized, message: "missing token"},
		{name: "too many requests", code: http.StatusTooManyRequests, message: "rate limit exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondWithError(w, tt.code, tt.message)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.message, response.Error)
		})
	}
}

func TestRespondWithJSON(t *testing.T) {
	w := httptest.NewRecorder()
	payload := map[string]any{"provider": "OPEN_AI", "token_count": 12}

	require.NoError(t, RespondWithJSON(w, http.StatusOK, payload))
	assert.Equal(t, http.StatusOK, w.Code)

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&decoded))
	assert.Equal(t, "OPEN_AI", decoded["provider"])
	assert.Equal(t, float64(12), decoded["token_count"])
}

func TestRespondWithJSONUnencodable(t *testing.T) {
	w := httptest.NewRecorder()
	err := RespondWithJSON(w, http.StatusOK, map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Prompt string `json:"prompt"`
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "valid", input: `{"prompt":"hi"}`, want: "hi"},
		{name: "empty body", input: ``, wantErr: true},
		{name: "unknown field", input: `{"prompt":"hi","extra":1}`, wantErr: true},
		{name: "trailing object", input: `{"prompt":"a"}{"prompt":"b"}`, wantErr: true},
		{name: "malformed", input: `{"prompt":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.input))
			var got body
			err := DecodeJSON(r, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Prompt)
		})
	}
}
