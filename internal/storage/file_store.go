package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"llm_compare/internal/models"
	"llm_compare/internal/utils"
)

const (
	// DefaultKeysFile holds one TYPE:value line per provider
	DefaultKeysFile = ".api_keys"

	// DefaultModelsFile holds one TYPE:model line per provider
	DefaultModelsFile = ".current_models"
)

// FileSettingsStore keeps settings in two plain-text files in a directory.
// Credentials are stored unencrypted with 0600 permissions.
type FileSettingsStore struct {
	mu         sync.Mutex
	keysPath   string
	modelsPath string
	logger     *utils.Logger
}

// NewFileSettingsStore creates a store rooted at dir ("" means the working directory)
func NewFileSettingsStore(dir string) *FileSettingsStore {
	return &FileSettingsStore{
		keysPath:   filepath.Join(dir, DefaultKeysFile),
		modelsPath: filepath.Join(dir, DefaultModelsFile),
		logger:     utils.NewLogger("file-settings"),
	}
}

// LoadKeys reads the keys file; a missing file yields an empty map
func (s *FileSettingsStore) LoadKeys(ctx context.Context) (map[models.ProviderType]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(s.keysPath)
}

// SaveKeys merges keys into the keys file and rewrites it
func (s *FileSettingsStore) SaveKeys(ctx context.Context, keys map[models.ProviderType]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(s.keysPath)
	if err != nil {
		return err
	}
	for provider, value := range keys {
		if value == "" {
			delete(current, provider)
			continue
		}
		current[provider] = value
	}
	return s.write(s.keysPath, current)
}

// LoadModels reads the models file; a missing file yields an empty map
func (s *FileSettingsStore) LoadModels(ctx context.Context) (map[models.ProviderType]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(s.modelsPath)
}

// SaveModel updates one provider's line in the models file
func (s *FileSettingsStore) SaveModel(ctx context.Context, provider models.ProviderType, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(s.modelsPath)
	if err != nil {
		return err
	}
	current[provider] = model
	return s.write(s.modelsPath, current)
}

func (s *FileSettingsStore) read(path string) (map[models.ProviderType]string, error) {
	result := make(map[models.ProviderType]string)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Values may contain ':' (model ids such as Bedrock's), so split on the first one only
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			s.logger.Warn("Skipping malformed settings line", "file", path, "line", lineNo)
			continue
		}
		provider, err := models.ParseProviderType(strings.TrimSpace(name))
		if err != nil {
			s.logger.Warn("Skipping unknown provider", "file", path, "line", lineNo, "provider", name)
			continue
		}
		result[provider] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return result, nil
}

// write replaces path atomically via a temp file in the same directory
func (s *FileSettingsStore) write(path string, values map[models.ProviderType]string) error {
	names := make([]string, 0, len(values))
	for provider := range values {
		names = append(names, string(provider))
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(values[models.ProviderType(name)])
		b.WriteByte('\n')
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}
