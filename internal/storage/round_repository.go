package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"llm_compare/internal/models"
)

// HistoryWriter persists a batch of round records
type HistoryWriter interface {
	WriteBatch(ctx context.Context, records []*models.RoundRecord) error
}

// RoundRepository handles round history database operations
type RoundRepository struct {
	db *DB
}

// NewRoundRepository creates a new round repository
func NewRoundRepository(db *DB) *RoundRepository {
	return &RoundRepository{db: db}
}

const insertRoundRecord = `
	INSERT INTO round_records (
		id, round_id, provider, model, prompt, system_prompt,
		response, token_count, error_message, latency_ms, created_at
	) VALUES (
		:id, :round_id, :provider, :model, :prompt, :system_prompt,
		:response, :token_count, :error_message, :latency_ms, :created_at
	)
	ON CONFLICT (id) DO NOTHING
`

// Create inserts a single record
func (r *RoundRepository) Create(ctx context.Context, record *models.RoundRecord) error {
	return r.create(ctx, r.db.conn, record)
}

func (r *RoundRepository) create(ctx context.Context, ext sqlx.ExtContext, record *models.RoundRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if _, err := sqlx.NamedExecContext(ctx, ext, insertRoundRecord, record); err != nil {
		return fmt.Errorf("failed to insert round record: %w", err)
	}
	return nil
}

// WriteBatch inserts all records inside one transaction
func (r *RoundRepository) WriteBatch(ctx context.Context, records []*models.RoundRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, record := range records {
		if err := r.create(ctx, tx, record); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByRound returns every record of one round ordered by provider
func (r *RoundRepository) GetByRound(ctx context.Context, roundID uuid.UUID) ([]*models.RoundRecord, error) {
	query := `
		SELECT id, round_id, provider, model, prompt, system_prompt,
		       response, token_count, error_message, latency_ms, created_at
		FROM round_records
		WHERE round_id = $1
		ORDER BY provider
	`

	var records []*models.RoundRecord
	if err := r.db.conn.SelectContext(ctx, &records, query, roundID); err != nil {
		return nil, fmt.Errorf("failed to get round records: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrRoundNotFound
	}
	return records, nil
}

// ListRecent returns the newest records, newest first
func (r *RoundRepository) ListRecent(ctx context.Context, limit int) ([]*models.RoundRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, round_id, provider, model, prompt, system_prompt,
		       response, token_count, error_message, latency_ms, created_at
		FROM round_records
		ORDER BY created_at DESC, provider
		LIMIT $1
	`

	var records []*models.RoundRecord
	if err := r.db.conn.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list round records: %w", err)
	}
	return records, nil
}
