package multiclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_compare/internal/metrics"
	"llm_compare/internal/models"
	"llm_compare/internal/providers"
)

func configureAll(t *testing.T, m *MultiClient) {
	t.Helper()
	keys := map[models.ProviderType]string{
		models.ProviderTypeOpenAI:      "sk-abc",
		models.ProviderTypeAnthropic:   "ant-key",
		models.ProviderTypeAzureOpenAI: "res%az-key",
		models.ProviderTypeBedrock:     "AKID%secret%token%us-east-1",
		models.ProviderTypeYandex:      "folder%ya-key",
		models.ProviderTypeGoogle:      "g-key",
	}
	results, err := m.SetKeys(context.Background(), keys)
	require.NoError(t, err)
	for provider, err := range results {
		require.NoError(t, err, provider)
	}
}

func TestDispatchOneResultPerProvider(t *testing.T) {
	m := newTestClient(t, Config{})
	configureAll(t, m)
	require.NoError(t, m.SetCurrentModel(context.Background(), models.ProviderTypeOpenAI, "gpt-4o"))

	round := m.Dispatch(context.Background(), "What is Go?", "Be brief")

	require.Len(t, round.Responses, 6)
	for _, provider := range m.ConfiguredProviders() {
		resp, ok := round.Responses[provider]
		require.True(t, ok, provider)
		assert.False(t, resp.IsError(), provider)
		assert.Equal(t, 7, resp.TokenCount)
	}
	assert.Equal(t, `OPEN_AI answered "What is Go?" with gpt-4o`, round.Responses[models.ProviderTypeOpenAI].Response)
	assert.Equal(t, "gpt-4o", round.Models[models.ProviderTypeOpenAI])
	assert.Equal(t, "Be brief", round.SystemPrompt)
	assert.NotEqual(t, round.ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestDispatchNoProviders(t *testing.T) {
	m := newTestClient(t, Config{})
	assert.Empty(t, m.ChatResponses(context.Background(), "hello", ""))
}

func TestDispatchPassesRequestFields(t *testing.T) {
	var got providers.TextRequest
	factory := newFakeFactory(func(p *fakeProvider) {
		p.generate = func(ctx context.Context, req providers.TextRequest) (*providers.TextResponse, error) {
			got = req
			return &providers.TextResponse{Text: "ok"}, nil
		}
	})
	m := newTestClient(t, Config{Factory: factory, MaxTokens: 256})
	_, err := m.SetKeys(context.Background(), map[models.ProviderType]string{models.ProviderTypeCohere: "co"})
	require.NoError(t, err)

	responses := m.ChatResponses(context.Background(), "prompt", "")
	assert.Equal(t, models.AIResponse{Response: "ok", LatencyMS: responses[models.ProviderTypeCohere].LatencyMS},
		responses[models.ProviderTypeCohere], "usage defaults to zero tokens")
	assert.Equal(t, "command-r", got.Model)
	assert.Equal(t, "prompt", got.Prompt)
	assert.Empty(t, got.SystemInstructions)
	assert.Equal(t, 256, got.MaxTokens)
}

func TestDispatchIsolatesFailures(t *testing.T) {
	factory := newFakeFactory(func(p *fakeProvider) {
		switch p.providerType {
		case models.ProviderTypeAnthropic:
			p.generate = func(context.Context, providers.TextRequest) (*providers.TextResponse, error) {
				return nil, &providers.APIError{StatusCode: 401, Body: "invalid x-api-key"}
			}
		case models.ProviderTypeGoogle:
			p.generate = func(context.Context, providers.TextRequest) (*providers.TextResponse, error) {
				panic("nil map write")
			}
		case models.ProviderTypeYandex:
			p.generate = func(context.Context, providers.TextRequest) (*providers.TextResponse, error) {
				return nil, nil
			}
		}
	})
	m := newTestClient(t, Config{Factory: factory})
	configureAll(t, m)

	responses := m.ChatResponses(context.Background(), "hi", "")
	require.Len(t, responses, 6)

	assert.True(t, responses[models.ProviderTypeAnthropic].IsError())
	assert.Contains(t, responses[models.ProviderTypeAnthropic].ErrorMessage, "401")
	assert.Empty(t, responses[models.ProviderTypeAnthropic].Response)

	assert.True(t, responses[models.ProviderTypeGoogle].IsError())
	assert.Contains(t, responses[models.ProviderTypeGoogle].ErrorMessage, ErrProviderPanic.Error())

	assert.Equal(t, ErrNilResponse.Error(), responses[models.ProviderTypeYandex].ErrorMessage)

	for _, ok := range []models.ProviderType{models.ProviderTypeOpenAI, models.ProviderTypeAzureOpenAI, models.ProviderTypeBedrock} {
		assert.False(t, responses[ok].IsError(), ok)
		assert.NotEmpty(t, responses[ok].Response, ok)
	}
}

func TestDispatchRunsConcurrently(t *testing.T) {
	const n = 6
	var arrived sync.WaitGroup
	arrived.Add(n)
	release := make(chan struct{})

	factory := newFakeFactory(func(p *fakeProvider) {
		p.generate = func(ctx context.Context, req providers.TextRequest) (*providers.TextResponse, error) {
			arrived.Done()
			<-release
			return &providers.TextResponse{Text: "done"}, nil
		}
	})
	m := newTestClient(t, Config{Factory: factory})
	configureAll(t, m)

	done := make(chan map[models.ProviderType]models.AIResponse)
	go func() { done <- m.ChatResponses(context.Background(), "hi", "") }()

	// Every call must be in flight at once before any may finish
	allArrived := make(chan struct{})
	go func() { arrived.Wait(); close(allArrived) }()
	select {
	case <-allArrived:
	case <-time.After(2 * time.Second):
		t.Fatal("provider calls did not run concurrently")
	}

	select {
	case <-done:
		t.Fatal("round returned before every provider finished")
	default:
	}

	close(release)
	responses := <-done
	assert.Len(t, responses, n)
}

func TestDispatchMaxConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	factory := newFakeFactory(func(p *fakeProvider) {
		p.generate = func(ctx context.Context, req providers.TextRequest) (*providers.TextResponse, error) {
			cur := inFlight.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return &providers.TextResponse{Text: "ok"}, nil
		}
	})
	m := newTestClient(t, Config{Factory: factory, MaxConcurrency: 2})
	configureAll(t, m)

	responses := m.ChatResponses(context.Background(), "hi", "")
	assert.Len(t, responses, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDispatchIgnoresCallerCancellation(t *testing.T) {
	factory := newFakeFactory(func(p *fakeProvider) {
		p.generate = func(ctx context.Context, req providers.TextRequest) (*providers.TextResponse, error) {
			time.Sleep(10 * time.Millisecond)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return &providers.TextResponse{Text: "finished"}, nil
		}
	})
	m := newTestClient(t, Config{Factory: factory})
	_, err := m.SetKeys(context.Background(), map[models.ProviderType]string{models.ProviderTypeMistral: "k"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	responses := m.ChatResponses(ctx, "hi", "")
	assert.Equal(t, "finished", responses[models.ProviderTypeMistral].Response)
}

func TestDispatchUsesSnapshotOfSettings(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	factory := newFakeFactory(func(p *fakeProvider) {
		p.generate = func(ctx context.Context, req providers.TextRequest) (*providers.TextResponse, error) {
			once.Do(func() { close(started) })
			<-release
			return &providers.TextResponse{Text: req.Model}, nil
		}
	})
	m := newTestClient(t, Config{Factory: factory})
	_, err := m.SetKeys(context.Background(), map[models.ProviderType]string{models.ProviderTypeOpenAI: "k1"})
	require.NoError(t, err)

	done := make(chan *models.Round)
	go func() { done <- m.Dispatch(context.Background(), "hi", "") }()
	<-started

	// Edits during the round do not touch it
	require.NoError(t, m.SetCurrentModel(context.Background(), models.ProviderTypeOpenAI, "gpt-4o"))
	_, err = m.SetKeys(context.Background(), map[models.ProviderType]string{models.ProviderTypeCohere: "k2"})
	require.NoError(t, err)
	close(release)

	round := <-done
	assert.Len(t, round.Responses, 1)
	assert.Equal(t, "o1-mini", round.Responses[models.ProviderTypeOpenAI].Response)
}

func TestDispatchRecordsRoundAndMetrics(t *testing.T) {
	factory := newFakeFactory(func(p *fakeProvider) {
		if p.providerType == models.ProviderTypeBedrock {
			p.generate = func(context.Context, providers.TextRequest) (*providers.TextResponse, error) {
				return nil, errors.New("ThrottlingException")
			}
		}
	})
	recorder := &recordingRecorder{err: errors.New("queue closed")}
	collector := metrics.NewCollector()
	m := newTestClient(t, Config{Factory: factory, Recorder: recorder, Metrics: collector})
	configureAll(t, m)

	round := m.Dispatch(context.Background(), "hi", "sys")

	recorder.mu.Lock()
	require.Len(t, recorder.rounds, 1, "a recorder failure does not affect the round")
	assert.Same(t, round, recorder.rounds[0])
	recorder.mu.Unlock()

	records := round.Records()
	assert.Len(t, records, 6)

	snap := collector.Snapshot()
	assert.Equal(t, int64(1), snap.Rounds)
	assert.Equal(t, int64(1), snap.Providers[models.ProviderTypeBedrock].Errors)
	assert.Equal(t, "ThrottlingException", snap.Providers[models.ProviderTypeBedrock].LastError)
	assert.Equal(t, int64(7), snap.Providers[models.ProviderTypeOpenAI].Tokens)
}
