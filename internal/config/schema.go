package config

// Config holds redline configuration.
// Stored at: ~/.redline/config.yaml
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Server       ServerCfg                 `mapstructure:"server" yaml:"server"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type       string  `mapstructure:"type" yaml:"type"`   // "openrouter", "openai", "mock"
	Model      string  `mapstructure:"model" yaml:"model"` // Model name
	APIKey     string  `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	RateLimit  float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	MaxRetries int     `mapstructure:"max_retries" yaml:"max_retries"`
	TimeoutSec int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default run parameters.
type DefaultsCfg struct {
	LLMProvider     string   `mapstructure:"llm_provider" yaml:"llm_provider"` // Provider for the agent loop and deep check
	Mode            string   `mapstructure:"mode" yaml:"mode"`                 // "auto", "review", or "plan"
	Dimensions      []string `mapstructure:"dimensions" yaml:"dimensions"`     // Analysis dimensions; empty means all
	MaxIterations   int      `mapstructure:"max_iterations" yaml:"max_iterations"`
	MaxPerParagraph int      `mapstructure:"max_per_paragraph" yaml:"max_per_paragraph"`
	PauseTimeoutSec int      `mapstructure:"pause_timeout_seconds" yaml:"pause_timeout_seconds"`
	Temperature     float64  `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens       int      `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// ServerCfg holds the HTTP server configuration.
type ServerCfg struct {
	// Port is the port to listen on (default: 9184).
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:       "openrouter",
				Model:      "anthropic/claude-sonnet-4",
				APIKey:     "${OPENROUTER_API_KEY}",
				RateLimit:  150,
				MaxRetries: 5,
				TimeoutSec: 120,
				Enabled:    true,
			},
			"openai": {
				Type:       "openai",
				Model:      "gpt-4o",
				APIKey:     "${OPENAI_API_KEY}",
				RateLimit:  60,
				MaxRetries: 5,
				TimeoutSec: 120,
				Enabled:    false,
			},
		},
		Defaults: DefaultsCfg{
			LLMProvider:     "openrouter",
			Mode:            "auto",
			MaxIterations:   50,
			MaxPerParagraph: 8,
			PauseTimeoutSec: 300,
			Temperature:     0.3,
			MaxTokens:       4096,
		},
		Server: ServerCfg{
			Port: "9184",
		},
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
