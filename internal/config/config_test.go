package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("REDLINE_TEST_KEY", "secret")

	tests := []struct {
		in, want string
	}{
		{"${REDLINE_TEST_KEY}", "secret"},
		{"prefix-${REDLINE_TEST_KEY}-suffix", "prefix-secret-suffix"},
		{"no vars here", "no vars here"},
		{"${UNSET_VAR_XYZ}", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ResolveEnvVars(tt.in); got != tt.want {
			t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToProviderRegistryConfig(t *testing.T) {
	t.Setenv("OR_TEST_KEY", "sk-123")
	cfg := &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:       "openrouter",
				Model:      "anthropic/claude-sonnet-4",
				APIKey:     "${OR_TEST_KEY}",
				RateLimit:  150,
				MaxRetries: 5,
				TimeoutSec: 120,
				Enabled:    true,
			},
		},
	}

	reg := cfg.ToProviderRegistryConfig()
	or := reg.LLMProviders["openrouter"]
	if or.APIKey != "sk-123" {
		t.Errorf("api key = %q", or.APIKey)
	}
	if or.RateLimit != 150 || or.TimeoutSec != 120 {
		t.Errorf("config = %+v", or)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if _, ok := cfg.GetLLMProvider("openrouter"); !ok {
		t.Error("default config must include openrouter")
	}
	enabled := cfg.EnabledLLMProviders()
	if _, ok := enabled["openrouter"]; !ok {
		t.Error("openrouter should be enabled by default")
	}
	if _, ok := enabled["openai"]; ok {
		t.Error("openai should be disabled by default")
	}
	if cfg.Defaults.Mode != "auto" || cfg.Defaults.MaxIterations <= 0 {
		t.Errorf("defaults = %+v", cfg.Defaults)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("write default: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	for _, want := range []string{"llm_providers", "openrouter", "defaults", "${OPENROUTER_API_KEY}"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("config file missing %q", want)
		}
	}
}
