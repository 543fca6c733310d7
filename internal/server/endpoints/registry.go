package endpoints

import (
	"github.com/proseforge/redline/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	SwaggerSpecPath string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Analysis
		&AnalyzeEndpoint{},

		// Session lifecycle
		&ListSessionsEndpoint{},
		&SessionStatusEndpoint{},
		&ResumeSessionEndpoint{},
		&CancelSessionEndpoint{},

		// Settings
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},
		&UpdateSettingEndpoint{},
		&ResetSettingEndpoint{},

		// Metrics
		&MetricsSummaryEndpoint{},
		&ListMetricsEndpoint{},

		// Swagger/OpenAPI
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&SwaggerUIEndpoint{},
	}
}

// SettingsCommands returns endpoints for settings operations, grouped
// under the "settings" subcommand.
func SettingsCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},
		&UpdateSettingEndpoint{},
		&ResetSettingEndpoint{},
	}
}

// SessionCommands returns endpoints for session operations, grouped
// under the "sessions" subcommand.
func SessionCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListSessionsEndpoint{},
		&SessionStatusEndpoint{},
		&ResumeSessionEndpoint{},
		&CancelSessionEndpoint{},
	}
}

// MetricsCommands returns endpoints for metrics operations, grouped
// under the "metrics" subcommand.
func MetricsCommands() []api.Endpoint {
	return []api.Endpoint{
		&MetricsSummaryEndpoint{},
		&ListMetricsEndpoint{},
	}
}
