// Package agent drives the paragraph-by-paragraph analysis loop: one
// LLM conversation per run, a two-part text protocol for tool calls, a
// stateful executor dispatching them, and a state machine that turns
// the whole thing into an ordered event stream.
package agent

import (
	"strings"

	"github.com/proseforge/redline/internal/narrative"
)

// RunState is the mutable working set for one run. It is owned by
// exactly one loop invocation and never shared across sessions, so it
// carries no locking.
type RunState struct {
	Project string
	Chapter string

	// Paragraphs are the selected paragraph texts in run order; Indices
	// maps each run position back to its chapter-wide paragraph index.
	Paragraphs []string
	Indices    []int

	// Current is the run-order cursor. Monotonically non-decreasing
	// except via the loop's bounded forced advance.
	Current int

	Bible      *narrative.Bible
	Dimensions []string

	Suggestions  []narrative.Suggestion
	Observations []string

	// Analyses caches rule-based analysis per run position.
	Analyses map[int]*narrative.ParagraphAnalysis
	// Characters caches lookups by canonical character name.
	Characters map[string]*narrative.Character

	visited map[int]bool

	Done    bool
	Summary string
}

// NewRunState builds the working set for a run over the given paragraph
// subset. indices must be parallel to paragraphs; nil means identity.
func NewRunState(project, chapter string, paragraphs []string, indices []int, bible *narrative.Bible, dimensions []string) *RunState {
	if indices == nil {
		indices = make([]int, len(paragraphs))
		for i := range paragraphs {
			indices[i] = i
		}
	}
	if len(dimensions) == 0 {
		dimensions = narrative.ValidDimensions()
	}
	return &RunState{
		Project:    project,
		Chapter:    chapter,
		Paragraphs: paragraphs,
		Indices:    indices,
		Bible:      bible,
		Dimensions: dimensions,
		Analyses:   make(map[int]*narrative.ParagraphAnalysis),
		Characters: make(map[string]*narrative.Character),
		visited:    make(map[int]bool),
	}
}

// CurrentParagraph returns the text under the cursor; ok is false once
// the cursor has run past the end.
func (s *RunState) CurrentParagraph() (string, bool) {
	if s.Current < 0 || s.Current >= len(s.Paragraphs) {
		return "", false
	}
	return s.Paragraphs[s.Current], true
}

// CurrentIndex returns the chapter-wide index of the paragraph under the
// cursor, or -1 past the end.
func (s *RunState) CurrentIndex() int {
	if s.Current < 0 || s.Current >= len(s.Indices) {
		return -1
	}
	return s.Indices[s.Current]
}

// Advance moves the cursor forward one position. Returns false when the
// cursor was already at or past the last paragraph.
func (s *RunState) Advance() bool {
	if s.Current >= len(s.Paragraphs)-1 {
		s.Current = len(s.Paragraphs)
		return false
	}
	s.Current++
	return true
}

// MarkVisited records the current paragraph as fully handled.
func (s *RunState) MarkVisited() {
	s.visited[s.Current] = true
}

// Visited reports whether run position i was marked handled.
func (s *RunState) Visited(i int) bool {
	return s.visited[i]
}

// ParagraphsAnalyzed counts positions the cursor has covered, capped at
// the paragraph count.
func (s *RunState) ParagraphsAnalyzed() int {
	n := s.Current
	if s.Current < len(s.Paragraphs) {
		n = s.Current + 1
	}
	if n > len(s.Paragraphs) {
		n = len(s.Paragraphs)
	}
	return n
}

// SuggestionCountFor counts suggestions recorded against the given
// chapter-wide paragraph index.
func (s *RunState) SuggestionCountFor(index int) int {
	n := 0
	for _, sug := range s.Suggestions {
		if sug.ParagraphIndex == index {
			n++
		}
	}
	return n
}

// ApplyUpdatedText swaps re-segmented chapter text into the paragraphs
// the run has not reached yet. Visited paragraphs and the one under the
// cursor keep their original text; only strictly-upcoming positions
// whose chapter index exists in the new segmentation are replaced.
func (s *RunState) ApplyUpdatedText(segments []string) int {
	replaced := 0
	for pos := s.Current + 1; pos < len(s.Paragraphs); pos++ {
		idx := s.Indices[pos]
		if idx >= 0 && idx < len(segments) {
			if !strings.EqualFold(s.Paragraphs[pos], segments[idx]) {
				replaced++
			}
			s.Paragraphs[pos] = segments[idx]
			delete(s.Analyses, pos)
		}
	}
	return replaced
}
