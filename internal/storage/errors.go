package storage

import "errors"

var (
	// ErrRoundNotFound is returned when no history exists for a round
	ErrRoundNotFound = errors.New("round not found")

	// ErrEncryptionRequired is returned when a shared store is opened without an encryption key
	ErrEncryptionRequired = errors.New("an encryption key is required for this settings store")
)
