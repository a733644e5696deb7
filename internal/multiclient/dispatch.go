package multiclient

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"llm_compare/internal/models"
	"llm_compare/internal/providers"
)

// ChatResponses sends the prompt to every configured provider and returns one
// response per provider once all of them have finished.
func (m *MultiClient) ChatResponses(ctx context.Context, prompt, systemPrompt string) map[models.ProviderType]models.AIResponse {
	return m.Dispatch(ctx, prompt, systemPrompt).Responses
}

// Dispatch runs one round. Every provider call runs concurrently, failures and
// panics are confined to the provider's own result, and the round returns
// only after every call resolved. Caller cancellation does not abort calls
// already in flight; request timeouts come from the HTTP transport.
func (m *MultiClient) Dispatch(ctx context.Context, prompt, systemPrompt string) *models.Round {
	clients, selected, _ := m.snapshot()

	round := &models.Round{
		ID:           uuid.New(),
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		StartedAt:    time.Now().UTC(),
		Models:       selected,
		Responses:    make(map[models.ProviderType]models.AIResponse, len(clients)),
	}

	callCtx := context.WithoutCancel(ctx)

	var mu sync.Mutex
	var g errgroup.Group
	if m.maxConcurrency > 0 {
		g.SetLimit(m.maxConcurrency)
	}

	for provider, client := range clients {
		req := providers.TextRequest{
			Model:              selected[provider],
			Prompt:             prompt,
			SystemInstructions: systemPrompt,
			MaxTokens:          m.maxTokens,
		}
		g.Go(func() error {
			resp := m.call(callCtx, provider, client, req)
			mu.Lock()
			round.Responses[provider] = resp
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	round.Duration = time.Since(round.StartedAt)
	m.observe(round)

	if m.recorder != nil {
		if err := m.recorder.RecordRound(callCtx, round); err != nil {
			m.logger.Error("Failed to record round", "round_id", round.ID, "error", err)
		}
	}

	return round
}

// call performs one provider request and converts every outcome into a response record
func (m *MultiClient) call(ctx context.Context, provider models.ProviderType, client providers.Provider, req providers.TextRequest) (resp models.AIResponse) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Provider call panicked", "provider", provider, "panic", r, "stack", string(debug.Stack()))
			resp = models.NewErrorResponse(fmt.Errorf("%w: %v", ErrProviderPanic, r), time.Since(start))
		}
	}()

	out, err := client.GenerateText(ctx, req)
	latency := time.Since(start)
	if err != nil {
		m.logger.Debug("Provider call failed", "provider", provider, "model", req.Model, "error", err)
		return models.NewErrorResponse(err, latency)
	}
	if out == nil {
		return models.NewErrorResponse(ErrNilResponse, latency)
	}
	return models.NewSuccessResponse(out.Text, out.TotalTokens(), latency)
}

func (m *MultiClient) observe(round *models.Round) {
	for provider, resp := range round.Responses {
		var err error
		if resp.IsError() {
			err = errors.New(resp.ErrorMessage)
		}
		m.metrics.ObserveProviderCall(provider, time.Duration(resp.LatencyMS)*time.Millisecond, resp.TokenCount, err)
	}
	m.metrics.ObserveRound(round.Duration, len(round.Responses))

	m.logger.Info("Round completed",
		"round_id", round.ID,
		"providers", len(round.Responses),
		"duration", round.Duration.Round(time.Millisecond),
	)
}
