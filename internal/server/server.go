package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/proseforge/redline/internal/api"
	"github.com/proseforge/redline/internal/config"
	"github.com/proseforge/redline/internal/home"
	"github.com/proseforge/redline/internal/metrics"
	"github.com/proseforge/redline/internal/providers"
	"github.com/proseforge/redline/internal/server/endpoints"
	"github.com/proseforge/redline/internal/session"
	"github.com/proseforge/redline/internal/svcctx"
	"github.com/proseforge/redline/internal/workflow"
)

// Server is the main Redline HTTP server. It owns the settings store,
// the metrics database, and the session registry, and assembles the
// workflow service the analysis endpoints dispatch into.
type Server struct {
	httpServer *http.Server
	registry   *providers.Registry
	sessions   *session.Controller
	configMgr  *config.Manager
	home       *home.Dir
	logger     *slog.Logger

	configStore config.Store
	recorder    *metrics.Recorder
	workflow    *workflow.Service

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 9184)
	Port string
	// Home is the redline home directory (settings, bibles, databases)
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "9184"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		dir, err := home.New("")
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home dir: %w", err)
		}
		cfg.Home = dir
	}

	// Create provider registry
	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)

	// If config manager provided, set up providers and hot reload
	if cfg.ConfigManager != nil {
		registry.Reload(cfg.ConfigManager.Get().ToProviderRegistryConfig())

		cfg.ConfigManager.OnChange(func(c *config.Config) {
			registry.Reload(c.ToProviderRegistryConfig())
			cfg.Logger.Info("provider registry reloaded from config")
		})
	}

	s := &Server{
		registry:  registry,
		sessions:  session.NewController(cfg.Logger),
		configMgr: cfg.ConfigManager,
		home:      cfg.Home,
		logger:    cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{SwaggerSpecPath: endpoints.GetSwaggerSpecPath()}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:     s.withServices(mux),
		ReadTimeout: 30 * time.Second,
		// Analyze responses stream for the lifetime of a run, so writes
		// are not bounded here.
		IdleTimeout: 120 * time.Second,
	}

	return s, nil
}

// Start initializes storage and serves HTTP. It blocks until the
// context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.initServices(ctx); err != nil {
		s.setNotRunning()
		return err
	}

	// Expire sessions nobody resumed or cancelled.
	sweepCtx, sweepCancel := context.WithCancel(ctx)
	defer sweepCancel()
	s.sessions.StartSweeper(sweepCtx, 5*time.Minute, session.DefaultTTL)

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// initServices opens the settings store and metrics database and wires
// the workflow service.
func (s *Server) initServices(ctx context.Context) error {
	if err := s.home.EnsureExists(); err != nil {
		return fmt.Errorf("failed to create home dir: %w", err)
	}

	store, err := config.NewFileStore(s.home.SettingsPath())
	if err != nil {
		return fmt.Errorf("failed to open settings store: %w", err)
	}
	if err := config.SeedDefaults(ctx, store, s.logger); err != nil {
		return fmt.Errorf("failed to seed default settings: %w", err)
	}
	s.configStore = store

	// Without a config file the settings store drives the providers.
	if s.configMgr == nil {
		regCfg, err := config.StoreToProviderRegistryConfig(ctx, store)
		if err != nil {
			return fmt.Errorf("failed to load provider settings: %w", err)
		}
		s.registry.Reload(regCfg)
	}

	recorder, err := metrics.OpenRecorder(s.home.MetricsDBPath())
	if err != nil {
		return fmt.Errorf("failed to open metrics database: %w", err)
	}
	s.recorder = recorder

	defaults := config.DefaultConfig().Defaults
	if s.configMgr != nil {
		defaults = s.configMgr.Get().Defaults
	}
	wf, err := workflow.NewService(workflow.Config{
		Home:     s.home,
		Registry: s.registry,
		Sessions: s.sessions,
		Recorder: recorder,
		Defaults: defaults,
		Logger:   s.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create workflow service: %w", err)
	}
	s.workflow = wf

	s.services = &svcctx.Services{
		Workflow:    wf,
		Sessions:    s.sessions,
		Registry:    s.registry,
		ConfigStore: store,
		Recorder:    recorder,
		Logger:      s.logger,
		Home:        s.home,
	}
	return nil
}

// shutdown performs graceful shutdown of the HTTP server and closes
// storage.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			s.logger.Error("metrics database close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Sessions returns the session controller.
func (s *Server) Sessions() *session.Controller {
	return s.sessions
}

// Workflow returns the workflow service.
// Returns nil before Start has initialized services.
func (s *Server) Workflow() *workflow.Service {
	return s.workflow
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until Start has wired the services.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
