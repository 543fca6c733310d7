package narrative

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadBible reads a story bible from a YAML file.
//
// Missing IDs are filled in from the entry's position so store imports have
// stable keys even for hand-written bibles.
func LoadBible(path string) (*Bible, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bible: %w", err)
	}
	return ParseBible(data)
}

// ParseBible decodes YAML bible content.
func ParseBible(data []byte) (*Bible, error) {
	var b Bible
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse bible: %w", err)
	}
	for i := range b.Characters {
		if b.Characters[i].ID == "" {
			b.Characters[i].ID = fmt.Sprintf("char-%d", i+1)
		}
	}
	for i := range b.Foreshadows {
		if b.Foreshadows[i].ID == "" {
			b.Foreshadows[i].ID = fmt.Sprintf("fs-%d", i+1)
		}
		if b.Foreshadows[i].Status == "" {
			b.Foreshadows[i].Status = ForeshadowPlanted
		}
	}
	return &b, nil
}

// ContextText renders the bible as prompt-ready plain text.
func (b *Bible) ContextText() string {
	if b == nil {
		return ""
	}
	out := ""
	if b.Title != "" {
		out += "Title: " + b.Title + "\n"
	}
	if b.Tone != "" {
		out += "Tone: " + b.Tone + "\n"
	}
	if b.Setting != "" {
		out += "Setting: " + b.Setting + "\n"
	}
	if b.Era != "" {
		out += "Era: " + b.Era + "\n"
	}
	if b.Notes != "" {
		out += "Notes: " + b.Notes + "\n"
	}
	return out
}
