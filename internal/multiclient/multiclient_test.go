package multiclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_compare/internal/models"
	"llm_compare/internal/providers"
	"llm_compare/internal/storage"
)

// fakeProvider is a scriptable providers.Provider
type fakeProvider struct {
	providerType models.ProviderType
	creds        providers.Credentials
	generate     func(ctx context.Context, req providers.TextRequest) (*providers.TextResponse, error)
	list         func(ctx context.Context) ([]string, error)

	generateCalls atomic.Int32
	listCalls     atomic.Int32
	closed        atomic.Bool
}

func (f *fakeProvider) Type() models.ProviderType { return f.providerType }

func (f *fakeProvider) GenerateText(ctx context.Context, req providers.TextRequest) (*providers.TextResponse, error) {
	f.generateCalls.Add(1)
	if f.generate != nil {
		return f.generate(ctx, req)
	}
	return &providers.TextResponse{
		Text:  fmt.Sprintf("%s answered %q with %s", f.providerType, req.Prompt, req.Model),
		Usage: &providers.Usage{InputTokens: 3, OutputTokens: 4},
	}, nil
}

func (f *fakeProvider) ListModels(ctx context.Context) ([]string, error) {
	f.listCalls.Add(1)
	if f.list != nil {
		return f.list(ctx)
	}
	return []string{string(f.providerType) + "-b", string(f.providerType) + "-a"}, nil
}

func (f *fakeProvider) Close() error {
	f.closed.Store(true)
	return nil
}

// fakeFactory wraps the real factory so credential parsing stays real,
// while every created client is a fakeProvider
type fakeFactory struct {
	*providers.ProviderFactory

	mu        sync.Mutex
	created   map[models.ProviderType][]*fakeProvider
	configure func(p *fakeProvider)
}

func newFakeFactory(configure func(p *fakeProvider)) *fakeFactory {
	f := &fakeFactory{
		ProviderFactory: providers.NewProviderFactory(providers.FactoryConfig{}),
		created:         make(map[models.ProviderType][]*fakeProvider),
		configure:       configure,
	}
	for _, t := range models.AllProviderTypes() {
		f.Register(t, func(cfg providers.ProviderConfig) (providers.Provider, error) {
			p := &fakeProvider{providerType: cfg.Type, creds: cfg.Credentials}
			if f.configure != nil {
				f.configure(p)
			}
			f.mu.Lock()
			f.created[cfg.Type] = append(f.created[cfg.Type], p)
			f.mu.Unlock()
			return p, nil
		})
	}
	return f
}

func (f *fakeFactory) latest(t models.ProviderType) *fakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.created[t]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

type recordingRecorder struct {
	mu     sync.Mutex
	rounds []*models.Round
	err    error
}

func (r *recordingRecorder) RecordRound(ctx context.Context, round *models.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, round)
	return r.err
}

func newTestClient(t *testing.T, cfg Config) *MultiClient {
	t.Helper()
	if cfg.Factory == nil {
		cfg.Factory = newFakeFactory(nil)
	}
	m, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestNewRequiresFactory(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestDefaultModelSelection(t *testing.T) {
	m := newTestClient(t, Config{})

	current := m.CurrentModels()
	assert.Len(t, current, 14)
	assert.Equal(t, "o1-mini", current[models.ProviderTypeOpenAI])
	assert.Equal(t, "yandexgpt", current[models.ProviderTypeYandex])
	assert.Empty(t, m.ConfiguredProviders())
}

func TestSetKeysPerProviderOutcome(t *testing.T) {
	factory := newFakeFactory(nil)
	m := newTestClient(t, Config{Factory: factory})

	results, err := m.SetKeys(context.Background(), map[models.ProviderType]string{
		models.ProviderTypeOpenAI:      "sk-abc",
		models.ProviderTypeAzureOpenAI: "my-resource%az-key",
		models.ProviderTypeBedrock:     "AKID%secret%us-east-1", // three segments instead of four
		models.ProviderTypeYandex:      "b1gfolder%AQVN%extra",
	})
	require.NoError(t, err)

	assert.NoError(t, results[models.ProviderTypeOpenAI])
	assert.NoError(t, results[models.ProviderTypeAzureOpenAI])
	assert.ErrorIs(t, results[models.ProviderTypeBedrock], providers.ErrMalformedCredentials)
	assert.ErrorIs(t, results[models.ProviderTypeYandex], providers.ErrMalformedCredentials)

	assert.Equal(t, []models.ProviderType{models.ProviderTypeAzureOpenAI, models.ProviderTypeOpenAI}, m.ConfiguredProviders())

	azure := factory.latest(models.ProviderTypeAzureOpenAI)
	require.NotNil(t, azure)
	assert.Equal(t, "my-resource", azure.creds.ResourceName)
	assert.Equal(t, "az-key", azure.creds.APIKey)
}

func TestSetKeysBedrockCompositeCredentials(t *testing.T) {
	factory := newFakeFactory(nil)
	m := newTestClient(t, Config{Factory: factory})

	results, err := m.SetKeys(context.Background(), map[models.ProviderType]string{
		models.ProviderTypeBedrock: "AKID%secret%%eu-west-1",
	})
	require.NoError(t, err)
	require.NoError(t, results[models.ProviderTypeBedrock])

	creds := factory.latest(models.ProviderTypeBedrock).creds
	assert.Equal(t, "AKID", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
	assert.Empty(t, creds.SessionToken)
	assert.Equal(t, "eu-west-1", creds.Region)
}

func TestSetKeysMalformedDropsPreviousClient(t *testing.T) {
	factory := newFakeFactory(nil)
	m := newTestClient(t, Config{Factory: factory})
	ctx := context.Background()

	_, err := m.SetKeys(ctx, map[models.ProviderType]string{models.ProviderTypeYandex: "folder%key"})
	require.NoError(t, err)
	first := factory.latest(models.ProviderTypeYandex)

	results, err := m.SetKeys(ctx, map[models.ProviderType]string{models.ProviderTypeYandex: "no-delimiter"})
	require.NoError(t, err)
	assert.ErrorIs(t, results[models.ProviderTypeYandex], providers.ErrMalformedCredentials)
	assert.Empty(t, m.ConfiguredProviders())
	assert.True(t, first.closed.Load())
}

func TestSetKeysEmptyRemovesProvider(t *testing.T) {
	factory := newFakeFactory(nil)
	m := newTestClient(t, Config{Factory: factory})
	ctx := context.Background()

	_, err := m.SetKeys(ctx, map[models.ProviderType]string{
		models.ProviderTypeCohere:  "co-key",
		models.ProviderTypeMistral: "mi-key",
	})
	require.NoError(t, err)

	results, err := m.SetKeys(ctx, map[models.ProviderType]string{models.ProviderTypeCohere: ""})
	require.NoError(t, err)
	assert.NoError(t, results[models.ProviderTypeCohere])
	assert.Equal(t, []models.ProviderType{models.ProviderTypeMistral}, m.ConfiguredProviders())
	assert.True(t, factory.latest(models.ProviderTypeCohere).closed.Load())
}

func TestSetKeysUnchangedKeepsClient(t *testing.T) {
	factory := newFakeFactory(nil)
	m := newTestClient(t, Config{Factory: factory})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.SetKeys(ctx, map[models.ProviderType]string{models.ProviderTypeGrok: "xai-key"})
		require.NoError(t, err)
	}
	factory.mu.Lock()
	assert.Len(t, factory.created[models.ProviderTypeGrok], 1)
	factory.mu.Unlock()
}

func TestSetKeysUnknownProvider(t *testing.T) {
	m := newTestClient(t, Config{})
	results, err := m.SetKeys(context.Background(), map[models.ProviderType]string{"NOPE": "x"})
	require.NoError(t, err)
	assert.ErrorIs(t, results["NOPE"], ErrUnknownProvider)
}

func TestSetCurrentModel(t *testing.T) {
	m := newTestClient(t, Config{})
	ctx := context.Background()

	require.NoError(t, m.SetCurrentModel(ctx, models.ProviderTypeOpenAI, "gpt-4o"))
	assert.Equal(t, "gpt-4o", m.CurrentModels()[models.ProviderTypeOpenAI])

	assert.ErrorIs(t, m.SetCurrentModel(ctx, "NOPE", "x"), ErrUnknownProvider)
	assert.ErrorIs(t, m.SetCurrentModel(ctx, models.ProviderTypeOpenAI, ""), ErrEmptyModel)
	assert.Equal(t, "gpt-4o", m.CurrentModels()[models.ProviderTypeOpenAI])

	// Returned maps are copies
	m.CurrentModels()[models.ProviderTypeOpenAI] = "mutated"
	assert.Equal(t, "gpt-4o", m.CurrentModels()[models.ProviderTypeOpenAI])
}

func TestSettingsPersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	m := newTestClient(t, Config{Store: storage.NewFileSettingsStore(dir)})
	_, err := m.SetKeys(ctx, map[models.ProviderType]string{
		models.ProviderTypeOpenAI:  "sk-abc",
		models.ProviderTypeBedrock: "bad",
		models.ProviderTypeGoogle:  "g-key",
	})
	require.NoError(t, err)
	require.NoError(t, m.SetCurrentModel(ctx, models.ProviderTypeGoogle, "models/gemini-1.5-flash"))
	_, err = m.SetKeys(ctx, map[models.ProviderType]string{models.ProviderTypeGoogle: ""})
	require.NoError(t, err)

	stored, err := storage.NewFileSettingsStore(dir).LoadKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.ProviderType]string{models.ProviderTypeOpenAI: "sk-abc"}, stored,
		"only successfully applied keys are persisted")

	restored := newTestClient(t, Config{Store: storage.NewFileSettingsStore(dir)})
	require.NoError(t, restored.Load(ctx))
	assert.Equal(t, []models.ProviderType{models.ProviderTypeOpenAI}, restored.ConfiguredProviders())
	assert.Equal(t, "models/gemini-1.5-flash", restored.CurrentModels()[models.ProviderTypeGoogle])
	assert.Equal(t, "o1-mini", restored.CurrentModels()[models.ProviderTypeOpenAI])
}

func TestMalformedKeyRemovesStoredCredentials(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	m := newTestClient(t, Config{Store: storage.NewFileSettingsStore(dir)})
	_, err := m.SetKeys(ctx, map[models.ProviderType]string{
		models.ProviderTypeYandex: "folder%key",
		models.ProviderTypeGrok:   "xai-key",
	})
	require.NoError(t, err)

	results, err := m.SetKeys(ctx, map[models.ProviderType]string{models.ProviderTypeYandex: "no-delimiter"})
	require.NoError(t, err)
	require.ErrorIs(t, results[models.ProviderTypeYandex], providers.ErrMalformedCredentials)
	assert.Equal(t, []models.ProviderType{models.ProviderTypeGrok}, m.ConfiguredProviders())

	stored, err := storage.NewFileSettingsStore(dir).LoadKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.ProviderType]string{models.ProviderTypeGrok: "xai-key"}, stored)

	restored := newTestClient(t, Config{Store: storage.NewFileSettingsStore(dir)})
	require.NoError(t, restored.Load(ctx))
	assert.Equal(t, m.ConfiguredProviders(), restored.ConfiguredProviders())
}

// slowStore delays saves so that unserialized writers would overtake each other
type slowStore struct {
	storage.SettingsStore
	calls atomic.Int32
}

func (s *slowStore) SaveKeys(ctx context.Context, keys map[models.ProviderType]string) error {
	if s.calls.Add(1)%2 == 1 {
		time.Sleep(5 * time.Millisecond)
	}
	return s.SettingsStore.SaveKeys(ctx, keys)
}

func TestConcurrentSetKeysKeepStoreInStep(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	m := newTestClient(t, Config{Store: &slowStore{SettingsStore: storage.NewFileSettingsStore(dir)}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.SetKeys(ctx, map[models.ProviderType]string{models.ProviderTypeGrok: fmt.Sprintf("xai-key-%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := storage.NewFileSettingsStore(dir).LoadKeys(ctx)
	require.NoError(t, err)
	m.mu.RLock()
	inMemory := m.keys[models.ProviderTypeGrok]
	m.mu.RUnlock()
	assert.Equal(t, inMemory, stored[models.ProviderTypeGrok])
}

type failingStore struct {
	storage.SettingsStore
}

func (failingStore) SaveKeys(context.Context, map[models.ProviderType]string) error {
	return errors.New("read-only filesystem")
}

func (failingStore) SaveModel(context.Context, models.ProviderType, string) error {
	return errors.New("read-only filesystem")
}

func TestPersistFailureKeepsInMemoryChange(t *testing.T) {
	m := newTestClient(t, Config{Store: failingStore{}})
	ctx := context.Background()

	results, err := m.SetKeys(ctx, map[models.ProviderType]string{models.ProviderTypeOpenAI: "sk-abc"})
	assert.ErrorIs(t, err, ErrPersistFailed)
	assert.NoError(t, results[models.ProviderTypeOpenAI])
	assert.Equal(t, []models.ProviderType{models.ProviderTypeOpenAI}, m.ConfiguredProviders())

	err = m.SetCurrentModel(ctx, models.ProviderTypeOpenAI, "gpt-4o")
	assert.ErrorIs(t, err, ErrPersistFailed)
	assert.Equal(t, "gpt-4o", m.CurrentModels()[models.ProviderTypeOpenAI])
}

func TestProvidersAndMaskedKeys(t *testing.T) {
	m := newTestClient(t, Config{})
	_, err := m.SetKeys(context.Background(), map[models.ProviderType]string{
		models.ProviderTypeAzureOpenAI: "my-resource%abcdefgh1234",
	})
	require.NoError(t, err)

	statuses := m.Providers()
	require.Len(t, statuses, 14)
	var azure ProviderStatus
	for _, s := range statuses {
		if s.Type == models.ProviderTypeAzureOpenAI {
			azure = s
		}
	}
	assert.True(t, azure.Configured)
	assert.Equal(t, "gpt-4o-mini", azure.CurrentModel)
	assert.Equal(t, "resourceName%apiKey", azure.CredentialFormat)

	masked := m.MaskedKeys()
	assert.Equal(t, "*******urce%********1234", masked[models.ProviderTypeAzureOpenAI])
}

func TestLoadWithoutStore(t *testing.T) {
	m := newTestClient(t, Config{})
	assert.NoError(t, m.Load(context.Background()))
}
