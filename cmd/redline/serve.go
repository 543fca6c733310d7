package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/proseforge/redline/internal/config"
	"github.com/proseforge/redline/internal/home"
	"github.com/proseforge/redline/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Redline server",
	Long: `Start the Redline HTTP server.

The server drives analysis runs and exposes their control surface:
  - /health                    - Basic server health check
  - /ready                     - Readiness check (includes LLM providers)
  - /api/analyze               - Run analysis, streaming events as SSE
  - /api/sessions/{id}/resume  - Resume a paused run
  - /api/sessions/{id}/cancel  - Cancel a run

Examples:
  redline serve                    # Start on default port 9184
  redline serve --port 3000        # Start on custom port
  redline serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		// Config is optional; the settings store covers a bare home dir.
		var mgr *config.Manager
		if cfgFile != "" || h.ConfigExists() {
			path := cfgFile
			if path == "" {
				path = h.ConfigPath()
			}
			mgr, err = config.NewManager(path)
			if err != nil {
				return err
			}
			mgr.WatchConfig()
		}

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			Home:          h,
			ConfigManager: mgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "9184", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
