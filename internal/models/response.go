package models

import (
	"time"

	"github.com/google/uuid"
)

// AIResponse is the outcome of one provider call within a round.
// Exactly one of Response or ErrorMessage is meaningful.
type AIResponse struct {
	Response     string `json:"response,omitempty"`
	TokenCount   int    `json:"token_count"`
	ErrorMessage string `json:"error,omitempty"`
	LatencyMS    int64  `json:"latency_ms"`
}

// NewSuccessResponse builds a success record
func NewSuccessResponse(text string, tokens int, latency time.Duration) AIResponse {
	if tokens < 0 {
		tokens = 0
	}
	return AIResponse{Response: text, TokenCount: tokens, LatencyMS: latency.Milliseconds()}
}

// NewErrorResponse builds an error record
func NewErrorResponse(err error, latency time.Duration) AIResponse {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return AIResponse{ErrorMessage: msg, LatencyMS: latency.Milliseconds()}
}

// IsError reports whether the call failed
func (r AIResponse) IsError() bool {
	return r.ErrorMessage != ""
}

// Round is one prompt fanned out to every configured provider
type Round struct {
	ID           uuid.UUID                   `json:"round_id"`
	Prompt       string                      `json:"prompt"`
	SystemPrompt string                      `json:"system_prompt,omitempty"`
	StartedAt    time.Time                   `json:"started_at"`
	Duration     time.Duration               `json:"-"`
	Models       map[ProviderType]string     `json:"models"`
	Responses    map[ProviderType]AIResponse `json:"responses"`
}

// Records flattens the round into one history record per provider
func (r *Round) Records() []*RoundRecord {
	records := make([]*RoundRecord, 0, len(r.Responses))
	for _, t := range AllProviderTypes() {
		resp, ok := r.Responses[t]
		if !ok {
			continue
		}
		records = append(records, &RoundRecord{
			ID:           uuid.New(),
			RoundID:      r.ID,
			Provider:     string(t),
			Model:        r.Models[t],
			Prompt:       r.Prompt,
			SystemPrompt: r.SystemPrompt,
			Response:     resp.Response,
			TokenCount:   resp.TokenCount,
			ErrorMessage: resp.ErrorMessage,
			LatencyMS:    resp.LatencyMS,
			CreatedAt:    r.StartedAt,
		})
	}
	return records
}
