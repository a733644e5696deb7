package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_compare/internal/models"
	"llm_compare/internal/storage"
)

func cliEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("KEY_STORE", "file")
	t.Setenv("SETTINGS_DIR", dir)
	t.Setenv("HISTORY_SINK", "file")
	t.Setenv("QUEUE_BACKEND", "memory")
	t.Setenv("ROUND_LOG_FILE_PATH_TEMPLATE", filepath.Join(dir, "rounds-%s.jsonl"))
	return dir
}

func TestRunClosesAppAfterFailedCommand(t *testing.T) {
	cliEnv(t)

	err := run(context.Background(), []string{"select", "NOPE", "some-model"})
	require.Error(t, err)
	assert.Nil(t, svc)

	// ask fails before dispatch without providers, and still closes
	err = run(context.Background(), []string{"ask", "hello"})
	require.Error(t, err)
	assert.Nil(t, svc)
}

func TestRunPersistsSelection(t *testing.T) {
	dir := cliEnv(t)

	var out bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--no-color", "select", "grok", "grok-beta"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	require.NotNil(t, svc)
	require.NoError(t, svc.Close())
	svc = nil

	assert.Contains(t, out.String(), "GROK now uses grok-beta")

	stored, err := storage.NewFileSettingsStore(dir).LoadModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "grok-beta", stored[models.ProviderTypeGrok])
}
