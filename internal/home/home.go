package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the redline home directory.
	DefaultDirName = ".redline"

	// DataDirName is the subdirectory for narrative and metrics databases.
	DataDirName = "data"

	// BiblesDirName is the subdirectory for imported story bibles.
	BiblesDirName = "bibles"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// SettingsFileName is the runtime-editable settings file.
	SettingsFileName = "settings.yaml"
)

// Dir represents the redline home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.redline).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DataPath returns the path to the data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// SettingsPath returns the path to the runtime settings store.
func (d *Dir) SettingsPath() string {
	return filepath.Join(d.path, SettingsFileName)
}

// NarrativeDBPath returns the sqlite database for one project's
// narrative store.
func (d *Dir) NarrativeDBPath(project string) string {
	return filepath.Join(d.DataPath(), fmt.Sprintf("%s.db", project))
}

// MetricsDBPath returns the sqlite database for LLM usage metrics.
func (d *Dir) MetricsDBPath() string {
	return filepath.Join(d.DataPath(), "metrics.db")
}

// BiblesDir returns the directory holding imported story bibles.
func (d *Dir) BiblesDir() string {
	return filepath.Join(d.path, BiblesDirName)
}

// BiblePath returns the story bible file for a project.
func (d *Dir) BiblePath(project string) string {
	return filepath.Join(d.BiblesDir(), fmt.Sprintf("%s.yaml", project))
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create data directory (this also creates the parent)
	if err := os.MkdirAll(d.DataPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(d.BiblesDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create bibles directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
