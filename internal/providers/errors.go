package providers

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedCredentials is returned when a credential string does not have
	// the number of %-separated segments its provider requires
	ErrMalformedCredentials = errors.New("malformed credentials")

	// ErrEmptyCredentials is returned for an empty credential string
	ErrEmptyCredentials = errors.New("credentials are empty")

	// ErrUnsupportedProvider is returned when no client is registered for a provider type
	ErrUnsupportedProvider = errors.New("unsupported provider type")

	// ErrEmptyCompletion is returned when a vendor answers without any generated text
	ErrEmptyCompletion = errors.New("provider returned no completion")
)

// APIError is returned when a vendor answers with a non-2xx status
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// IsAuthError reports whether err is a vendor rejection of the credentials
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
	}
	return false
}
