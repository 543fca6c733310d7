package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// DefaultEntries returns the default configuration entries.
// These seed the runtime settings store on first run.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// LLM Providers
		// ===================

		// LLM Providers - OpenRouter
		{
			Key:         "providers.llm.openrouter.type",
			Value:       "openrouter",
			Description: "LLM provider type for OpenRouter",
		},
		{
			Key:         "providers.llm.openrouter.model",
			Value:       "anthropic/claude-sonnet-4",
			Description: "Default model for OpenRouter",
		},
		{
			Key:         "providers.llm.openrouter.api_key",
			Value:       "${OPENROUTER_API_KEY}",
			Description: "OpenRouter API key (uses environment variable)",
		},
		{
			Key:         "providers.llm.openrouter.rate_limit",
			Value:       150,
			Description: "Rate limit in requests per minute for OpenRouter",
		},
		{
			Key:         "providers.llm.openrouter.max_retries",
			Value:       5,
			Description: "Maximum retry attempts for failed OpenRouter requests",
		},
		{
			Key:         "providers.llm.openrouter.timeout_seconds",
			Value:       120,
			Description: "HTTP timeout in seconds for OpenRouter requests",
		},
		{
			Key:         "providers.llm.openrouter.enabled",
			Value:       true,
			Description: "Whether the OpenRouter LLM provider is enabled",
		},

		// LLM Providers - OpenAI
		{
			Key:         "providers.llm.openai.type",
			Value:       "openai",
			Description: "LLM provider type for OpenAI",
		},
		{
			Key:         "providers.llm.openai.model",
			Value:       "gpt-4o",
			Description: "Default model for OpenAI",
		},
		{
			Key:         "providers.llm.openai.api_key",
			Value:       "${OPENAI_API_KEY}",
			Description: "OpenAI API key (uses environment variable)",
		},
		{
			Key:         "providers.llm.openai.rate_limit",
			Value:       60,
			Description: "Rate limit in requests per minute for OpenAI",
		},
		{
			Key:         "providers.llm.openai.max_retries",
			Value:       5,
			Description: "Maximum retry attempts for failed OpenAI requests",
		},
		{
			Key:         "providers.llm.openai.timeout_seconds",
			Value:       120,
			Description: "HTTP timeout in seconds for OpenAI requests",
		},
		{
			Key:         "providers.llm.openai.enabled",
			Value:       false,
			Description: "Whether the OpenAI LLM provider is enabled",
		},

		// ===================
		// Run Defaults
		// ===================
		{
			Key:         "defaults.llm_provider",
			Value:       "openrouter",
			Description: "LLM provider used for the agent loop and deep checks",
		},
		{
			Key:         "defaults.mode",
			Value:       "auto",
			Description: "Default run mode: auto, review, or plan",
		},
		{
			Key:         "defaults.max_iterations",
			Value:       50,
			Description: "Total LLM-turn budget for one run",
		},
		{
			Key:         "defaults.max_per_paragraph",
			Value:       8,
			Description: "Turns allowed on one paragraph before a forced advance",
		},
		{
			Key:         "defaults.pause_timeout_seconds",
			Value:       300,
			Description: "How long a paused run waits for resume before cancelling itself",
		},
		{
			Key:         "defaults.temperature",
			Value:       0.3,
			Description: "Sampling temperature for analysis completions",
		},
		{
			Key:         "defaults.max_tokens",
			Value:       4096,
			Description: "Completion token cap per LLM turn",
		},
	}
}

// SeedDefaults seeds default configuration entries into the store.
// This is idempotent - existing entries are not overwritten.
func SeedDefaults(ctx context.Context, store Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultEntries()
	seeded := 0
	skipped := 0

	for _, entry := range defaults {
		// Check if key already exists
		existing, err := store.Get(ctx, entry.Key)
		if err != nil {
			return fmt.Errorf("failed to check key %q: %w", entry.Key, err)
		}

		if existing != nil {
			skipped++
			continue
		}

		// Create the entry
		if err := store.Set(ctx, entry.Key, entry.Value, entry.Description); err != nil {
			return fmt.Errorf("failed to seed key %q: %w", entry.Key, err)
		}
		seeded++
	}

	if seeded > 0 {
		logger.Info("seeded default config entries", "seeded", seeded, "skipped", skipped)
	}
	return nil
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ResetToDefault resets a config key to its default value.
// Returns ErrNoDefault if no default exists for the key.
func ResetToDefault(ctx context.Context, store Store, key string) error {
	def := GetDefault(key)
	if def == nil {
		return fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return store.Set(ctx, key, def.Value, def.Description)
}
