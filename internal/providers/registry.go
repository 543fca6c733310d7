package providers

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry holds references to LLM clients. It supports config-driven
// instantiation, hot-reload, and thread-safe access.
type Registry struct {
	mu         sync.RWMutex
	llmClients map[string]LLMClient
	logger     *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		llmClients: make(map[string]LLMClient),
		logger:     slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterLLM registers an LLM client by name.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients[name] = client
	if r.logger != nil {
		r.logger.Info("registered LLM client", "name", name)
	}
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.llmClients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// Names returns the registered client names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llmClients))
	for name := range r.llmClients {
		names = append(names, name)
	}
	return names
}

// LLMProviderConfig describes one provider entry from configuration.
type LLMProviderConfig struct {
	Type       string
	Model      string
	APIKey     string
	RateLimit  int // requests per minute
	MaxRetries int
	TimeoutSec int
	Enabled    bool
}

// RegistryConfig is the provider section of the application config.
type RegistryConfig struct {
	LLMProviders map[string]LLMProviderConfig
}

// Reload replaces the registered clients from config. Disabled or
// unrecognized entries are dropped.
func (r *Registry) Reload(cfg RegistryConfig) {
	clients := make(map[string]LLMClient)
	for name, pc := range cfg.LLMProviders {
		if !pc.Enabled {
			continue
		}
		timeout := time.Duration(pc.TimeoutSec) * time.Second
		switch pc.Type {
		case OpenRouterName:
			clients[name] = NewOpenRouterClient(OpenRouterConfig{
				APIKey:       pc.APIKey,
				DefaultModel: pc.Model,
				RPM:          pc.RateLimit,
				MaxRetries:   pc.MaxRetries,
				Timeout:      timeout,
			})
		case OpenAIName:
			clients[name] = NewOpenAIClient(OpenAIConfig{
				APIKey:       pc.APIKey,
				DefaultModel: pc.Model,
				RPM:          pc.RateLimit,
				MaxRetries:   pc.MaxRetries,
				Timeout:      timeout,
			})
		case MockClientName:
			clients[name] = NewMockClient()
		default:
			if r.logger != nil {
				r.logger.Warn("unknown LLM provider type", "name", name, "type", pc.Type)
			}
		}
	}

	r.mu.Lock()
	r.llmClients = clients
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Info("provider registry reloaded", "llm_clients", len(clients))
	}
}
