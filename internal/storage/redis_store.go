package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"llm_compare/internal/models"
	"llm_compare/internal/utils"
)

const (
	redisKeysHash   = "llm_compare:provider_keys"
	redisModelsHash = "llm_compare:current_models"
)

// RedisSettingsStore keeps encrypted credentials and model selections in two Redis hashes
type RedisSettingsStore struct {
	client     *redis.Client
	encryption *Encryption
	logger     *utils.Logger
}

// NewRedisSettingsStore creates a Redis-backed settings store
func NewRedisSettingsStore(client *redis.Client, encryption *Encryption) (*RedisSettingsStore, error) {
	if encryption == nil {
		return nil, ErrEncryptionRequired
	}
	return &RedisSettingsStore{
		client:     client,
		encryption: encryption,
		logger:     utils.NewLogger("redis-settings"),
	}, nil
}

// LoadKeys decrypts every field of the keys hash. Fields that fail to decrypt are skipped.
func (s *RedisSettingsStore) LoadKeys(ctx context.Context) (map[models.ProviderType]string, error) {
	fields, err := s.client.HGetAll(ctx, redisKeysHash).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read provider keys: %w", err)
	}

	keys := make(map[models.ProviderType]string, len(fields))
	for name, encrypted := range fields {
		provider, err := models.ParseProviderType(name)
		if err != nil {
			s.logger.Warn("Skipping unknown provider", "provider", name)
			continue
		}
		plaintext, err := s.encryption.DecryptString(encrypted, keyAssociatedData(provider))
		if err != nil {
			s.logger.Error("Failed to decrypt provider key", "provider", provider, "error", err)
			continue
		}
		keys[provider] = plaintext
	}
	return keys, nil
}

// SaveKeys applies all upserts and deletes in one MULTI/EXEC
func (s *RedisSettingsStore) SaveKeys(ctx context.Context, keys map[models.ProviderType]string) error {
	upserts := make(map[string]interface{})
	var deletes []string

	for provider, value := range keys {
		if value == "" {
			deletes = append(deletes, string(provider))
			continue
		}
		encrypted, err := s.encryption.EncryptString(value, keyAssociatedData(provider))
		if err != nil {
			return fmt.Errorf("failed to encrypt key for %s: %w", provider, err)
		}
		upserts[string(provider)] = encrypted
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(upserts) > 0 {
			pipe.HSet(ctx, redisKeysHash, upserts)
		}
		if len(deletes) > 0 {
			pipe.HDel(ctx, redisKeysHash, deletes...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save provider keys: %w", err)
	}
	return nil
}

// LoadModels returns the model selection hash
func (s *RedisSettingsStore) LoadModels(ctx context.Context) (map[models.ProviderType]string, error) {
	fields, err := s.client.HGetAll(ctx, redisModelsHash).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read model selections: %w", err)
	}

	selections := make(map[models.ProviderType]string, len(fields))
	for name, model := range fields {
		provider, err := models.ParseProviderType(name)
		if err != nil {
			continue
		}
		selections[provider] = model
	}
	return selections, nil
}

// SaveModel sets one field of the model selection hash
func (s *RedisSettingsStore) SaveModel(ctx context.Context, provider models.ProviderType, model string) error {
	if err := s.client.HSet(ctx, redisModelsHash, string(provider), model).Err(); err != nil {
		return fmt.Errorf("failed to save model selection: %w", err)
	}
	return nil
}
