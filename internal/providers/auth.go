package providers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// APIKeyAuth implements API key authentication sent in a single header
type APIKeyAuth struct {
	apiKey     string
	headerName string // e.g., "Authorization"
	prefix     string // e.g., "Bearer "
	extra      map[string]string
}

// NewBearerAuth creates an authenticator sending "Authorization: Bearer <key>"
func NewBearerAuth(apiKey string) *APIKeyAuth {
	return NewAPIKeyAuth(apiKey, "Authorization", "Bearer ")
}

// NewAPIKeyAuth creates a new API key authenticator
func NewAPIKeyAuth(apiKey, headerName, prefix string) *APIKeyAuth {
	if headerName == "" {
		headerName = "Authorization"
	}
	return &APIKeyAuth{
		apiKey:     apiKey,
		headerName: headerName,
		prefix:     prefix,
	}
}

// WithHeader adds a static header sent alongside the key
func (a *APIKeyAuth) WithHeader(name, value string) *APIKeyAuth {
	if a.extra == nil {
		a.extra = make(map[string]string)
	}
	a.extra[name] = value
	return a
}

// Authenticate returns an auth context with the API key
func (a *APIKeyAuth) Authenticate(ctx context.Context) (AuthContext, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	return a, nil
}

// ApplyToRequest adds the API key to the HTTP request
func (a *APIKeyAuth) ApplyToRequest(ctx context.Context, req any) error {
	httpReq, ok := req.(*http.Request)
	if !ok {
		return fmt.Errorf("expected *http.Request, got %T", req)
	}

	httpReq.Header.Set(a.headerName, a.prefix+a.apiKey)
	for k, v := range a.extra {
		httpReq.Header.Set(k, v)
	}
	return nil
}

// SigV4Auth signs requests with AWS Signature Version 4
type SigV4Auth struct {
	provider aws.CredentialsProvider
	signer   *v4.Signer
	service  string
	region   string
	now      func() time.Time
}

// NewSigV4Auth creates a signer backed by static access keys
func NewSigV4Auth(accessKeyID, secretAccessKey, sessionToken, service, region string) *SigV4Auth {
	return &SigV4Auth{
		provider: credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken),
		signer:   v4.NewSigner(),
		service:  service,
		region:   region,
		now:      time.Now,
	}
}

// Authenticate resolves the AWS credentials used to sign the next request
func (a *SigV4Auth) Authenticate(ctx context.Context) (AuthContext, error) {
	creds, err := a.provider.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve AWS credentials: %w", err)
	}
	return &sigV4AuthContext{auth: a, creds: creds}, nil
}

type sigV4AuthContext struct {
	auth  *SigV4Auth
	creds aws.Credentials
}

// ApplyToRequest signs the HTTP request; the body must be replayable via GetBody
func (c *sigV4AuthContext) ApplyToRequest(ctx context.Context, req any) error {
	httpReq, ok := req.(*http.Request)
	if !ok {
		return fmt.Errorf("expected *http.Request, got %T", req)
	}

	payloadHash, err := hashRequestBody(httpReq)
	if err != nil {
		return err
	}
	httpReq.Header.Set("X-Amz-Content-Sha256", payloadHash)

	if err := c.auth.signer.SignHTTP(ctx, c.creds, httpReq, payloadHash, c.auth.service, c.auth.region, c.auth.now()); err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}
	return nil
}

func hashRequestBody(req *http.Request) (string, error) {
	var payload []byte
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return "", fmt.Errorf("failed to read request body: %w", err)
		}
		defer body.Close()
		payload, err = io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("failed to read request body: %w", err)
		}
	} else if req.Body != nil && req.Body != http.NoBody {
		var err error
		payload, err = io.ReadAll(req.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(payload))
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
