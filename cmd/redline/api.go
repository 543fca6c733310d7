package main

import (
	"github.com/spf13/cobra"

	"github.com/proseforge/redline/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Redline server via HTTP.

These commands require a running server (redline serve).
Use --server to specify a custom server URL.

Examples:
  redline api health                          # Check server health
  redline api analyze --project p --chapter 1 --file ch1.txt
  redline api sessions resume <session-id>    # Resume a paused run`,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Session lifecycle commands",
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "LLM usage and cost tracking commands",
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Configuration settings commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:9184", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Analysis at top level of api
	apiCmd.AddCommand((&endpoints.AnalyzeEndpoint{}).Command(getServerURL))

	// Subcommand groups
	for _, ep := range endpoints.SessionCommands() {
		sessionsCmd.AddCommand(ep.Command(getServerURL))
	}
	for _, ep := range endpoints.MetricsCommands() {
		metricsCmd.AddCommand(ep.Command(getServerURL))
	}
	for _, ep := range endpoints.SettingsCommands() {
		settingsCmd.AddCommand(ep.Command(getServerURL))
	}

	// Swagger spec fetcher
	apiCmd.AddCommand((&endpoints.SwaggerEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(sessionsCmd)
	apiCmd.AddCommand(metricsCmd)
	apiCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(apiCmd)
}
