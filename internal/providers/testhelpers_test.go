package providers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"llm_compare/internal/models"
)

// newTestProvider builds a provider of the given type pointed at a fake vendor server
func newTestProvider(t *testing.T, providerType models.ProviderType, raw string, handler http.HandlerFunc) Provider {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	factory := NewProviderFactory(FactoryConfig{
		HTTPClient: srv.Client(),
		BaseURLs:   map[models.ProviderType]string{providerType: srv.URL},
	})
	p, err := factory.CreateProvider(providerType, raw)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func writeJSON(w http.ResponseWriter, status int, payload string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, payload)
}
