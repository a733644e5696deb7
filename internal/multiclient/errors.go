package multiclient

import "errors"

var (
	// ErrUnknownProvider is returned for a provider type outside the supported set
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrEmptyModel is returned when selecting an empty model name
	ErrEmptyModel = errors.New("model name cannot be empty")

	// ErrProviderPanic is reported in place of a response when a provider call panics
	ErrProviderPanic = errors.New("provider call panicked")

	// ErrNilResponse is reported when a provider returns neither a response nor an error
	ErrNilResponse = errors.New("provider returned no response")

	// ErrPersistFailed wraps settings store failures; the in-memory change still applies
	ErrPersistFailed = errors.New("failed to persist settings")
)
