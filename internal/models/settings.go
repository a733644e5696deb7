package models

import "time"

// ProviderKey is the stored credential string for one provider
type ProviderKey struct {
	Provider       string    `db:"provider"`
	EncryptedKey   string    `db:"encrypted_key"`
	KeyFingerprint string    `db:"key_fingerprint"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// ModelSelection is the stored current model for one provider
type ModelSelection struct {
	Provider  string    `db:"provider"`
	Model     string    `db:"model"`
	UpdatedAt time.Time `db:"updated_at"`
}
