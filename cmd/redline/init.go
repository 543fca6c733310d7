package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/proseforge/redline/internal/config"
	"github.com/proseforge/redline/internal/home"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the redline home directory and a default config",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		if h.ConfigExists() {
			fmt.Printf("Config already exists at %s\n", h.ConfigPath())
			return nil
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}
		fmt.Printf("Initialized %s\n", h.Path())
		fmt.Printf("  Config: %s\n", h.ConfigPath())
		fmt.Printf("  Bibles: %s\n", h.BiblesDir())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
