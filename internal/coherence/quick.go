package coherence

import (
	"fmt"
	"strings"

	"github.com/proseforge/redline/internal/narrative"
)

// Issue is one rule-based finding from QuickCheck. Unlike Checker output
// it carries no replacement text; the model decides what to do with it.
type Issue struct {
	Dimension   string `json:"dimension"`
	Description string `json:"description"`
	Severity    string `json:"severity"` // "high", "medium", "low"
}

// QuickOptions tunes the consecutive-paragraph rules.
type QuickOptions struct {
	// ToneFlips lists emotion transitions worth flagging when they happen
	// without a transition cue. Keys and values are emotion labels.
	ToneFlips map[string]string
}

// DefaultQuickOptions flags the jarring tone reversals.
func DefaultQuickOptions() QuickOptions {
	return QuickOptions{
		ToneFlips: map[string]string{
			"joyful": "sad",
			"sad":    "joyful",
			"calm":   "tense",
			"tense":  "calm",
			"angry":  "calm",
		},
	}
}

// PriorityForSeverity maps a severity label to a suggestion priority.
// Unknown labels land on medium.
func PriorityForSeverity(severity string) int {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "high", "critical":
		return narrative.PriorityHigh
	case "low", "minor", "info":
		return narrative.PriorityLow
	default:
		return narrative.PriorityMedium
	}
}

// QuickCheck compares the cached analyses of two consecutive paragraphs
// and returns rule-based issues. No network calls; prev may be nil for
// the first paragraph, in which case only roster checks apply.
func QuickCheck(bible *narrative.Bible, prev, cur *narrative.ParagraphAnalysis, opts QuickOptions) []Issue {
	if cur == nil {
		return nil
	}
	var issues []Issue

	// Characters the bible never introduced.
	for _, name := range cur.Characters {
		if bible == nil || bible.CharacterByName(name) == nil {
			issues = append(issues, Issue{
				Dimension:   narrative.DimCharacter,
				Description: fmt.Sprintf("character %q appears but is not in the story bible", name),
				Severity:    "medium",
			})
		}
	}

	if prev == nil {
		return issues
	}

	// Scene jump without a transition cue.
	if prev.Scene != "" && cur.Scene != "" && prev.Scene != cur.Scene && !cur.Transition {
		issues = append(issues, Issue{
			Dimension:   narrative.DimScene,
			Description: fmt.Sprintf("scene shifts from %q to %q with no transition cue", prev.Scene, cur.Scene),
			Severity:    "medium",
		})
	}

	// Time marker change between adjacent paragraphs.
	if prev.TimeMarker != "" && cur.TimeMarker != "" && prev.TimeMarker != cur.TimeMarker {
		issues = append(issues, Issue{
			Dimension:   narrative.DimTimeline,
			Description: fmt.Sprintf("time marker changes from %q to %q; confirm the jump is intended", prev.TimeMarker, cur.TimeMarker),
			Severity:    "low",
		})
	}

	// Configured emotion-tone flip.
	if want, ok := opts.ToneFlips[prev.Emotion]; ok && want == cur.Emotion && !cur.Transition {
		issues = append(issues, Issue{
			Dimension:   narrative.DimStyle,
			Description: fmt.Sprintf("emotional tone flips from %q to %q without a bridge", prev.Emotion, cur.Emotion),
			Severity:    "medium",
		})
	}

	return issues
}
