package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v2"

	"github.com/proseforge/redline/internal/providers"
)

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
// This protects against typos and malformed keys.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	// Don't allow keys starting or ending with dots
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// Store provides access to runtime-editable settings. These overlay the
// static config file and survive restarts.
type Store interface {
	// Get returns a single config entry by key, nil when absent.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set creates or updates a config entry.
	Set(ctx context.Context, key string, value any, description string) error

	// GetAll returns all config entries.
	GetAll(ctx context.Context) (map[string]Entry, error)

	// GetByPrefix returns config entries matching the prefix.
	GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error)

	// Delete removes a config entry.
	Delete(ctx context.Context, key string) error
}

// Entry represents a single configuration entry.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// FileStore implements Store over a single YAML file. Every mutation
// rewrites the file; reads serve from the in-memory copy.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	entries map[string]Entry
}

// NewFileStore opens (or creates) a YAML-backed settings store.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		entries: make(map[string]Entry),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read settings file: %w", err)
	}

	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse settings file: %w", err)
	}
	for _, e := range entries {
		s.entries[e.Key] = e
	}
	return nil
}

// persist writes the entries back to disk, sorted by key for stable
// diffs. Caller holds the write lock.
func (s *FileStore) persist() error {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, s.entries[k])
	}

	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Get returns a single config entry by key.
func (s *FileStore) Get(ctx context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[key]; ok {
		return &e, nil
	}
	return nil, nil
}

// Set creates or updates a config entry.
func (s *FileStore) Set(ctx context.Context, key string, value any, description string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry{Key: key, Value: value, Description: description}
	return s.persist()
}

// GetAll returns all config entries.
func (s *FileStore) GetAll(ctx context.Context) (map[string]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]Entry, len(s.entries))
	for k, e := range s.entries {
		result[k] = e
	}
	return result, nil
}

// GetByPrefix returns config entries matching the prefix.
func (s *FileStore) GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]Entry)
	for k, e := range s.entries {
		if strings.HasPrefix(k, prefix) {
			result[k] = e
		}
	}
	return result, nil
}

// Delete removes a config entry by key.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return nil // Already doesn't exist
	}
	delete(s.entries, key)
	return s.persist()
}

// StoreToProviderRegistryConfig builds a ProviderRegistryConfig from the Store.
// It reads all config entries and constructs the provider configuration,
// resolving ${ENV_VAR} references in API keys.
func StoreToProviderRegistryConfig(ctx context.Context, store Store) (providers.RegistryConfig, error) {
	cfg := providers.RegistryConfig{
		LLMProviders: make(map[string]providers.LLMProviderConfig),
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		return cfg, fmt.Errorf("failed to get config: %w", err)
	}

	// Parse LLM providers: providers.llm.<name>.<field>
	llmProviders := extractProviders(all, "providers.llm.")
	for name, fields := range llmProviders {
		cfg.LLMProviders[name] = providers.LLMProviderConfig{
			Type:       getString(fields, "type"),
			Model:      getString(fields, "model"),
			APIKey:     ResolveEnvVars(getString(fields, "api_key")),
			RateLimit:  getInt(fields, "rate_limit"),
			MaxRetries: getInt(fields, "max_retries"),
			TimeoutSec: getInt(fields, "timeout_seconds"),
			Enabled:    getBool(fields, "enabled"),
		}
	}

	return cfg, nil
}

// extractProviders groups config entries by provider name.
// For example, "providers.llm.openrouter.type" becomes openrouter -> {type: value}
func extractProviders(entries map[string]Entry, prefix string) map[string]map[string]any {
	result := make(map[string]map[string]any)

	for key, entry := range entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		// Remove prefix and split: "openrouter.type" -> ["openrouter", "type"]
		remainder := strings.TrimPrefix(key, prefix)
		parts := strings.SplitN(remainder, ".", 2)
		if len(parts) != 2 {
			continue
		}

		providerName := parts[0]
		fieldName := parts[1]

		if result[providerName] == nil {
			result[providerName] = make(map[string]any)
		}
		result[providerName][fieldName] = entry.Value
	}

	return result
}

// Helper functions to extract typed values from a map
func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func getBool(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}
