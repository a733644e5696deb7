package models

import (
	"time"

	"github.com/google/uuid"
)

// RoundRecord is the persisted outcome of a single provider call in a round
type RoundRecord struct {
	ID           uuid.UUID `db:"id" json:"id"`
	RoundID      uuid.UUID `db:"round_id" json:"round_id"`
	Provider     string    `db:"provider" json:"provider"`
	Model        string    `db:"model" json:"model"`
	Prompt       string    `db:"prompt" json:"prompt"`
	SystemPrompt string    `db:"system_prompt" json:"system_prompt,omitempty"`
	Response     string    `db:"response" json:"response,omitempty"`
	TokenCount   int       `db:"token_count" json:"token_count"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	LatencyMS    int64     `db:"latency_ms" json:"latency_ms"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Failed reports whether the recorded call failed
func (r *RoundRecord) Failed() bool {
	return r.ErrorMessage != ""
}
