// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/proseforge/redline/internal/config"
	"github.com/proseforge/redline/internal/home"
	"github.com/proseforge/redline/internal/metrics"
	"github.com/proseforge/redline/internal/providers"
	"github.com/proseforge/redline/internal/session"
	"github.com/proseforge/redline/internal/workflow"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Workflow    *workflow.Service
	Sessions    *session.Controller
	Registry    *providers.Registry
	ConfigStore config.Store
	Recorder    *metrics.Recorder
	Logger      *slog.Logger
	Home        *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// WorkflowFrom extracts the workflow service from context.
func WorkflowFrom(ctx context.Context) *workflow.Service {
	if s := ServicesFrom(ctx); s != nil {
		return s.Workflow
	}
	return nil
}

// SessionsFrom extracts the session controller from context.
func SessionsFrom(ctx context.Context) *session.Controller {
	if s := ServicesFrom(ctx); s != nil {
		return s.Sessions
	}
	return nil
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// ConfigStoreFrom extracts the config store from context.
func ConfigStoreFrom(ctx context.Context) config.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigStore
	}
	return nil
}

// RecorderFrom extracts the metrics recorder from context.
func RecorderFrom(ctx context.Context) *metrics.Recorder {
	if s := ServicesFrom(ctx); s != nil {
		return s.Recorder
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
