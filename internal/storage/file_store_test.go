package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_compare/internal/models"
)

func TestFileSettingsStoreMissingFiles(t *testing.T) {
	store := NewFileSettingsStore(t.TempDir())
	ctx := context.Background()

	keys, err := store.LoadKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	selections, err := store.LoadModels(ctx)
	require.NoError(t, err)
	assert.Empty(t, selections)
}

func TestFileSettingsStoreKeysRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileSettingsStore(dir)
	ctx := context.Background()

	err := store.SaveKeys(ctx, map[models.ProviderType]string{
		models.ProviderTypeOpenAI:  "sk-abc",
		models.ProviderTypeBedrock: "AKID%secret%%us-east-1",
	})
	require.NoError(t, err)

	keys, err := store.LoadKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.ProviderType]string{
		models.ProviderTypeOpenAI:  "sk-abc",
		models.ProviderTypeBedrock: "AKID%secret%%us-east-1",
	}, keys)

	data, err := os.ReadFile(filepath.Join(dir, DefaultKeysFile))
	require.NoError(t, err)
	assert.Equal(t, "BEDROCK:AKID%secret%%us-east-1\nOPEN_AI:sk-abc\n", string(data))

	info, err := os.Stat(filepath.Join(dir, DefaultKeysFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileSettingsStoreMergeAndDelete(t *testing.T) {
	store := NewFileSettingsStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.SaveKeys(ctx, map[models.ProviderType]string{
		models.ProviderTypeOpenAI:    "sk-abc",
		models.ProviderTypeAnthropic: "ant-key",
	}))
	require.NoError(t, store.SaveKeys(ctx, map[models.ProviderType]string{
		models.ProviderTypeOpenAI:  "",
		models.ProviderTypeMistral: "mis-key",
	}))

	keys, err := store.LoadKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.ProviderType]string{
		models.ProviderTypeAnthropic: "ant-key",
		models.ProviderTypeMistral:   "mis-key",
	}, keys)
}

func TestFileSettingsStoreToleratesHandEditedFile(t *testing.T) {
	dir := t.TempDir()
	content := "# keys\n\n open_ai : sk-abc \nNOT_A_PROVIDER:zzz\ngarbage line\nGOOGLE:g-key\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultKeysFile), []byte(content), 0o600))

	keys, err := NewFileSettingsStore(dir).LoadKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[models.ProviderType]string{
		models.ProviderTypeOpenAI: "sk-abc",
		models.ProviderTypeGoogle: "g-key",
	}, keys)
}

func TestFileSettingsStoreModels(t *testing.T) {
	store := NewFileSettingsStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.SaveModel(ctx, models.ProviderTypeBedrock, "anthropic.claude-3-5-sonnet-20240620-v1:0"))
	require.NoError(t, store.SaveModel(ctx, models.ProviderTypeOpenAI, "gpt-4o"))
	require.NoError(t, store.SaveModel(ctx, models.ProviderTypeOpenAI, "o1-mini"))

	selections, err := store.LoadModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.ProviderType]string{
		models.ProviderTypeBedrock: "anthropic.claude-3-5-sonnet-20240620-v1:0",
		models.ProviderTypeOpenAI:  "o1-mini",
	}, selections)
}
