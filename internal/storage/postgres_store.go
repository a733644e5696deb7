package storage

import (
	"context"
	"fmt"

	"llm_compare/internal/models"
	"llm_compare/internal/utils"
)

// PostgresSettingsStore keeps encrypted credentials and model selections in Postgres
type PostgresSettingsStore struct {
	db         *DB
	encryption *Encryption
	logger     *utils.Logger
}

// NewPostgresSettingsStore creates a Postgres-backed settings store
func NewPostgresSettingsStore(db *DB, encryption *Encryption) (*PostgresSettingsStore, error) {
	if encryption == nil {
		return nil, ErrEncryptionRequired
	}
	return &PostgresSettingsStore{
		db:         db,
		encryption: encryption,
		logger:     utils.NewLogger("pg-settings"),
	}, nil
}

// LoadKeys decrypts every stored credential. Rows that fail to decrypt are skipped.
func (s *PostgresSettingsStore) LoadKeys(ctx context.Context) (map[models.ProviderType]string, error) {
	query := `
		SELECT provider, encrypted_key, key_fingerprint, created_at, updated_at
		FROM provider_keys
		ORDER BY provider
	`

	var rows []models.ProviderKey
	if err := s.db.conn.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list provider keys: %w", err)
	}

	keys := make(map[models.ProviderType]string, len(rows))
	for _, row := range rows {
		provider, err := models.ParseProviderType(row.Provider)
		if err != nil {
			s.logger.Warn("Skipping unknown provider", "provider", row.Provider)
			continue
		}
		plaintext, err := s.encryption.DecryptString(row.EncryptedKey, keyAssociatedData(provider))
		if err != nil {
			s.logger.Error("Failed to decrypt provider key", "provider", provider, "error", err)
			continue
		}
		keys[provider] = plaintext
	}

	return keys, nil
}

// SaveKeys upserts and deletes credentials in a single transaction
func (s *PostgresSettingsStore) SaveKeys(ctx context.Context, keys map[models.ProviderType]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO provider_keys (provider, encrypted_key, key_fingerprint, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (provider) DO UPDATE
		SET encrypted_key = EXCLUDED.encrypted_key,
		    key_fingerprint = EXCLUDED.key_fingerprint,
		    updated_at = NOW()
	`

	for provider, value := range keys {
		if value == "" {
			if _, err := tx.ExecContext(ctx, `DELETE FROM provider_keys WHERE provider = $1`, string(provider)); err != nil {
				return fmt.Errorf("failed to delete key for %s: %w", provider, err)
			}
			continue
		}

		encrypted, err := s.encryption.EncryptString(value, keyAssociatedData(provider))
		if err != nil {
			return fmt.Errorf("failed to encrypt key for %s: %w", provider, err)
		}
		if _, err := tx.ExecContext(ctx, upsert, string(provider), encrypted, utils.Fingerprint(value)); err != nil {
			return fmt.Errorf("failed to save key for %s: %w", provider, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadModels returns every stored model selection
func (s *PostgresSettingsStore) LoadModels(ctx context.Context) (map[models.ProviderType]string, error) {
	query := `SELECT provider, model, updated_at FROM model_selections ORDER BY provider`

	var rows []models.ModelSelection
	if err := s.db.conn.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list model selections: %w", err)
	}

	selections := make(map[models.ProviderType]string, len(rows))
	for _, row := range rows {
		provider, err := models.ParseProviderType(row.Provider)
		if err != nil {
			continue
		}
		selections[provider] = row.Model
	}
	return selections, nil
}

// SaveModel upserts one provider's model selection
func (s *PostgresSettingsStore) SaveModel(ctx context.Context, provider models.ProviderType, model string) error {
	query := `
		INSERT INTO model_selections (provider, model, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (provider) DO UPDATE
		SET model = EXCLUDED.model, updated_at = NOW()
	`

	if _, err := s.db.conn.ExecContext(ctx, query, string(provider), model); err != nil {
		return fmt.Errorf("failed to save model selection: %w", err)
	}
	return nil
}
