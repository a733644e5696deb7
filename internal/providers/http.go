package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"
)

const (
	defaultRequestTimeout = 60 * time.Second
	maxErrorBodyPreview   = 500
)

// NewHTTPClient creates the pooled client shared by provider instances
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// httpBackend bundles what every HTTP-based provider needs to talk to its vendor
type httpBackend struct {
	client     *http.Client
	auth       Authenticator
	ownsClient bool
}

func newHTTPBackend(config ProviderConfig, auth Authenticator) httpBackend {
	if config.HTTPClient != nil {
		return httpBackend{client: config.HTTPClient, auth: auth}
	}
	return httpBackend{client: NewHTTPClient(0), auth: auth, ownsClient: true}
}

func (b *httpBackend) close() error {
	if b.ownsClient {
		b.client.CloseIdleConnections()
	}
	return nil
}

// doJSON sends an authenticated request with an optional JSON body and decodes a
// 2xx JSON answer into Out. Non-2xx answers become *APIError.
func doJSON[Out any](ctx context.Context, b *httpBackend, method, url string, body any) (*Out, error) {
	var reader io.Reader
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	authCtx, err := b.auth.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if err := authCtx.ApplyToRequest(ctx, httpReq); err != nil {
		return nil, fmt.Errorf("failed to apply auth: %w", err)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), maxErrorBodyPreview)}
	}

	var out Out
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w: %s",
			resp.StatusCode, err, truncate(string(respBody), maxErrorBodyPreview))
	}
	return &out, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
