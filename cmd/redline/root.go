package main

import (
	"github.com/spf13/cobra"

	"github.com/proseforge/redline/internal/api"
	"github.com/proseforge/redline/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "redline",
	Short: "LLM-driven continuity analysis for fiction manuscripts",
	Long: `Redline reads a chapter the way a continuity editor would: paragraph
by paragraph, checking each one against the story so far and the
project's story bible.

The analysis covers:
  - Character knowledge, voice, and introduction order
  - Scene and timeline continuity between paragraphs
  - Foreshadowing payoffs and dropped threads
  - Tone and style drift

Runs stream their findings as events and can pause for review, accept
revised text mid-run, and record every LLM call for cost tracking.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.redline/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "redline home directory (default: ~/.redline)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
