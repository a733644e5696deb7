package providers

import (
	"fmt"
	"strings"

	"llm_compare/internal/models"
)

// CredentialDelimiter separates the segments of composite credentials
const CredentialDelimiter = "%"

// Credentials are the parsed parts of a provider credential string.
// Which fields are set depends on the provider type.
type Credentials struct {
	APIKey string

	// Azure OpenAI
	ResourceName string

	// Yandex
	FolderID string

	// Bedrock
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
}

type credentialLayout struct {
	segments []string
	optional map[int]bool
}

var compositeLayouts = map[models.ProviderType]credentialLayout{
	models.ProviderTypeAzureOpenAI: {segments: []string{"resourceName", "apiKey"}},
	models.ProviderTypeYandex:      {segments: []string{"folderId", "apiKey"}},
	models.ProviderTypeBedrock: {
		segments: []string{"accessKeyId", "secretAccessKey", "sessionToken", "region"},
		optional: map[int]bool{2: true},
	},
}

// CredentialSegments returns how many %-separated segments a provider expects
func CredentialSegments(t models.ProviderType) int {
	if layout, ok := compositeLayouts[t]; ok {
		return len(layout.segments)
	}
	return 1
}

// CredentialFormat describes the credential string a provider expects
func CredentialFormat(t models.ProviderType) string {
	if layout, ok := compositeLayouts[t]; ok {
		return strings.Join(layout.segments, CredentialDelimiter)
	}
	return "apiKey"
}

// CredentialsError reports a credential string with the wrong shape
type CredentialsError struct {
	Provider models.ProviderType
	Expected int
	Got      int
	Segment  string // set when a required segment is empty
}

func (e *CredentialsError) Error() string {
	if e.Segment != "" {
		return fmt.Sprintf("malformed credentials for %s: segment %q is empty (expected %s)",
			e.Provider, e.Segment, CredentialFormat(e.Provider))
	}
	return fmt.Sprintf("malformed credentials for %s: expected %d %s-separated segments (%s), got %d",
		e.Provider, e.Expected, CredentialDelimiter, CredentialFormat(e.Provider), e.Got)
}

func (e *CredentialsError) Unwrap() error {
	return ErrMalformedCredentials
}

// ParseCredentials splits a raw credential string according to the provider's layout.
// Single-segment credentials are taken verbatim; composite ones must have exactly
// the expected number of segments.
func ParseCredentials(t models.ProviderType, raw string) (Credentials, error) {
	if raw == "" {
		return Credentials{}, fmt.Errorf("%s: %w", t, ErrEmptyCredentials)
	}

	layout, composite := compositeLayouts[t]
	if !composite {
		return Credentials{APIKey: raw}, nil
	}

	parts := strings.Split(raw, CredentialDelimiter)
	if len(parts) != len(layout.segments) {
		return Credentials{}, &CredentialsError{Provider: t, Expected: len(layout.segments), Got: len(parts)}
	}
	for i, p := range parts {
		if p == "" && !layout.optional[i] {
			return Credentials{}, &CredentialsError{
				Provider: t,
				Expected: len(layout.segments),
				Got:      len(parts),
				Segment:  layout.segments[i],
			}
		}
	}

	switch t {
	case models.ProviderTypeAzureOpenAI:
		return Credentials{ResourceName: parts[0], APIKey: parts[1]}, nil
	case models.ProviderTypeYandex:
		return Credentials{FolderID: parts[0], APIKey: parts[1]}, nil
	default:
		return Credentials{
			AccessKeyID:     parts[0],
			SecretAccessKey: parts[1],
			SessionToken:    parts[2],
			Region:          parts[3],
		}, nil
	}
}
