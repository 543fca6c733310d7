// Package narrative holds the domain model for continuity analysis: the
// story bible (characters, planted foreshadowing, tone and setting notes),
// per-paragraph analysis signals, and the suggestions the analyzer emits.
package narrative

import "strings"

// Character is one entry in the story bible's cast roster.
type Character struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Aliases      []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Traits       string   `json:"traits,omitempty" yaml:"traits,omitempty"`
	State        string   `json:"state,omitempty" yaml:"state,omitempty"`
	FirstChapter string   `json:"first_chapter,omitempty" yaml:"first_chapter,omitempty"`
}

// ForeshadowStatus tracks whether a planted setup has paid off yet.
type ForeshadowStatus string

const (
	ForeshadowPlanted  ForeshadowStatus = "planted"
	ForeshadowResolved ForeshadowStatus = "resolved"
	ForeshadowDropped  ForeshadowStatus = "dropped"
)

// Foreshadow is a planted setup the narrative must eventually honor.
type Foreshadow struct {
	ID             string           `json:"id" yaml:"id"`
	Content        string           `json:"content" yaml:"content"`
	PlantedChapter string           `json:"planted_chapter,omitempty" yaml:"planted_chapter,omitempty"`
	Status         ForeshadowStatus `json:"status" yaml:"status"`
}

// Bible is the read-only narrative context loaded at workflow start.
type Bible struct {
	Title       string       `json:"title" yaml:"title"`
	Tone        string       `json:"tone,omitempty" yaml:"tone,omitempty"`
	Setting     string       `json:"setting,omitempty" yaml:"setting,omitempty"`
	Era         string       `json:"era,omitempty" yaml:"era,omitempty"`
	Notes       string       `json:"notes,omitempty" yaml:"notes,omitempty"`
	Characters  []Character  `json:"characters,omitempty" yaml:"characters,omitempty"`
	Foreshadows []Foreshadow `json:"foreshadows,omitempty" yaml:"foreshadows,omitempty"`
}

// CharacterByName finds a roster entry by name or alias, case-insensitively.
func (b *Bible) CharacterByName(name string) *Character {
	if b == nil {
		return nil
	}
	for i := range b.Characters {
		c := &b.Characters[i]
		if strings.EqualFold(c.Name, name) {
			return c
		}
		for _, a := range c.Aliases {
			if strings.EqualFold(a, name) {
				return c
			}
		}
	}
	return nil
}

// ParagraphAnalysis is the cached, rule-derived signal set for one paragraph.
type ParagraphAnalysis struct {
	Index      int      `json:"index"`
	Characters []string `json:"characters,omitempty"`
	Scene      string   `json:"scene,omitempty"`
	TimeMarker string   `json:"time_marker,omitempty"`
	Emotion    string   `json:"emotion,omitempty"`
	Actions    []string `json:"actions,omitempty"`
	// Transition records whether the paragraph opens with a scene or time
	// transition cue, so consecutive-paragraph checks need not re-read text.
	Transition bool `json:"transition,omitempty"`
}

// Suggestion priorities, high to low.
const (
	PriorityHigh   = 3
	PriorityMedium = 2
	PriorityLow    = 1
)

// Suggestion is a proposed verbatim text replacement. Immutable once made:
// the run appends suggestions and never edits them.
type Suggestion struct {
	ParagraphIndex int    `json:"paragraph_index"`
	Category       string `json:"category"`
	Original       string `json:"original_text"`
	Suggested      string `json:"suggested_text"`
	Reason         string `json:"reason"`
	Priority       int    `json:"priority"`
}

// Analysis dimensions a run can check.
const (
	DimCoherence  = "coherence"
	DimCharacter  = "character"
	DimForeshadow = "foreshadowing"
	DimTimeline   = "timeline"
	DimStyle      = "style"
	DimScene      = "scene"
)

// ValidDimensions lists every supported dimension in rubric order.
func ValidDimensions() []string {
	return []string{DimCoherence, DimCharacter, DimForeshadow, DimTimeline, DimStyle, DimScene}
}
