package config

import (
	"context"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestValidateKey(t *testing.T) {
	valid := []string{
		"defaults.mode",
		"providers.llm.openrouter.api_key",
		"some-key_1",
	}
	for _, key := range valid {
		if err := ValidateKey(key); err != nil {
			t.Errorf("ValidateKey(%q) = %v, want nil", key, err)
		}
	}

	invalid := []string{
		"",
		".leading.dot",
		"trailing.dot.",
		"has space",
		"has/slash",
		"has$dollar",
	}
	for _, key := range invalid {
		if err := ValidateKey(key); err == nil {
			t.Errorf("ValidateKey(%q) = nil, want error", key)
		}
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := s.Set(ctx, "defaults.mode", "review", "run mode"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "defaults.max_iterations", 40, "budget"); err != nil {
		t.Fatalf("set: %v", err)
	}

	e, err := s.Get(ctx, "defaults.mode")
	if err != nil || e == nil {
		t.Fatalf("get: entry=%v err=%v", e, err)
	}
	if e.Value != "review" {
		t.Errorf("value = %v", e.Value)
	}

	// A fresh store over the same file sees the persisted entries.
	s2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	all, err := s2.GetAll(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("all = %v, err = %v", all, err)
	}

	if err := s2.Delete(ctx, "defaults.mode"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if e, _ := s2.Get(ctx, "defaults.mode"); e != nil {
		t.Errorf("entry survives delete: %v", e)
	}
	// Deleting a missing key is a no-op.
	if err := s2.Delete(ctx, "defaults.mode"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestFileStoreRejectsBadKey(t *testing.T) {
	s := testStore(t)
	if err := s.Set(context.Background(), "bad key!", 1, ""); err == nil {
		t.Error("invalid key accepted")
	}
}

func TestGetByPrefix(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	seed := map[string]any{
		"providers.llm.openrouter.type": "openrouter",
		"providers.llm.openai.type":     "openai",
		"defaults.mode":                 "auto",
	}
	for k, v := range seed {
		if err := s.Set(ctx, k, v, ""); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	got, err := s.GetByPrefix(ctx, "providers.llm.")
	if err != nil {
		t.Fatalf("prefix: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d entries, want 2", len(got))
	}
}

func TestSeedDefaultsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	if err := SeedDefaults(ctx, s, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Override one key, then seed again: the override survives.
	if err := s.Set(ctx, "defaults.mode", "review", "run mode"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := SeedDefaults(ctx, s, nil); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	e, _ := s.Get(ctx, "defaults.mode")
	if e == nil || e.Value != "review" {
		t.Errorf("entry = %v, override should survive reseed", e)
	}
}

func TestResetToDefault(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	if err := s.Set(ctx, "defaults.mode", "plan", ""); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := ResetToDefault(ctx, s, "defaults.mode"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	e, _ := s.Get(ctx, "defaults.mode")
	if e == nil || e.Value != "auto" {
		t.Errorf("entry = %v, want default auto", e)
	}

	if err := ResetToDefault(ctx, s, "no.such.key"); err == nil {
		t.Error("reset of unknown key should fail")
	}
}

func TestStoreToProviderRegistryConfig(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	t.Setenv("TEST_OR_KEY", "sk-or-123")

	seed := map[string]any{
		"providers.llm.openrouter.type":       "openrouter",
		"providers.llm.openrouter.model":      "anthropic/claude-sonnet-4",
		"providers.llm.openrouter.api_key":    "${TEST_OR_KEY}",
		"providers.llm.openrouter.rate_limit": 150,
		"providers.llm.openrouter.enabled":    true,
	}
	for k, v := range seed {
		if err := s.Set(ctx, k, v, ""); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	cfg, err := StoreToProviderRegistryConfig(ctx, s)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	or, ok := cfg.LLMProviders["openrouter"]
	if !ok {
		t.Fatalf("providers = %v", cfg.LLMProviders)
	}
	if or.APIKey != "sk-or-123" {
		t.Errorf("api key = %q, env var not resolved", or.APIKey)
	}
	if or.RateLimit != 150 || !or.Enabled {
		t.Errorf("config = %+v", or)
	}
}
