package coherence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/proseforge/redline/internal/narrative"
	"github.com/proseforge/redline/internal/providers"
)

// dimensionRubric is the per-dimension instruction embedded in the
// checker prompt.
var dimensionRubric = map[string]string{
	narrative.DimCoherence:  "logical flow: does each sentence follow from the last, are causes stated before effects",
	narrative.DimCharacter:  "character consistency: names, traits, knowledge, and physical state match the bible and earlier paragraphs",
	narrative.DimForeshadow: "foreshadowing: planted setups are honored, nothing pays off that was never planted",
	narrative.DimTimeline:   "timeline: time markers are consistent, no impossible jumps or repeats",
	narrative.DimStyle:      "style and tone: register and emotional tone match the surrounding text and the bible's tone notes",
	narrative.DimScene:      "scene continuity: location and physical setting stay consistent, transitions are cued",
}

// CheckRequest carries everything one deep check needs.
type CheckRequest struct {
	Paragraph  string
	Index      int
	Recent     []string // prior paragraphs, oldest first; only the last 3 are used
	Context    string   // rendered story-bible context
	Retrieved  []string // retrieved character/foreshadow snippets
	Dimensions []string // subset of narrative.ValidDimensions(); empty means all
}

// Checker runs the one-call LLM deep analysis of a paragraph.
type Checker struct {
	client      providers.LLMClient
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	logger      *slog.Logger
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

func WithModel(model string) CheckerOption {
	return func(c *Checker) { c.model = model }
}

func WithTemperature(t float64) CheckerOption {
	return func(c *Checker) { c.temperature = t }
}

func WithMaxTokens(n int) CheckerOption {
	return func(c *Checker) { c.maxTokens = n }
}

func WithTimeout(d time.Duration) CheckerOption {
	return func(c *Checker) { c.timeout = d }
}

func WithLogger(l *slog.Logger) CheckerOption {
	return func(c *Checker) { c.logger = l }
}

// NewChecker builds a Checker over the given client.
func NewChecker(client providers.LLMClient, opts ...CheckerOption) *Checker {
	c := &Checker{
		client:      client,
		temperature: 0.3,
		maxTokens:   2048,
		timeout:     90 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// checkIssue is the shape the model is asked to emit, parsed leniently.
type checkIssue struct {
	Dimension   string `json:"dimension"`
	Description string `json:"description"`
	Original    string `json:"original_text"`
	Suggested   string `json:"suggested_text"`
	Reason      string `json:"reason"`
	Severity    string `json:"severity"`
}

// CheckParagraph performs one completion call and maps the reported
// issues to suggestions. Any failure, from the request itself to
// unparseable output, yields an empty list: the caller cannot tell "no
// issues" from "checker failed", and the failure is only logged. That
// keeps the outer loop resilient to a flaky checker.
func (c *Checker) CheckParagraph(ctx context.Context, req CheckRequest) []narrative.Suggestion {
	if c.client == nil {
		c.logger.Warn("deep check skipped: no LLM client wired")
		return nil
	}

	prompt := c.buildPrompt(req)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	res, err := c.client.Chat(ctx, &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: checkerSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		c.logger.Warn("deep check call failed", "paragraph", req.Index, "error", err)
		return nil
	}
	if !res.Success {
		c.logger.Warn("deep check returned failure", "paragraph", req.Index,
			"error_type", res.ErrorType, "error", res.ErrorMessage)
		return nil
	}

	issues, err := parseIssues(res.Content)
	if err != nil {
		c.logger.Warn("deep check output unparseable", "paragraph", req.Index, "error", err)
		return nil
	}

	suggestions := make([]narrative.Suggestion, 0, len(issues))
	for _, iss := range issues {
		if iss.Original == "" && iss.Suggested == "" && iss.Description == "" {
			continue
		}
		category := iss.Dimension
		if !validDimension(category) {
			category = narrative.DimCoherence
		}
		reason := iss.Reason
		if reason == "" {
			reason = iss.Description
		}
		suggestions = append(suggestions, narrative.Suggestion{
			ParagraphIndex: req.Index,
			Category:       category,
			Original:       iss.Original,
			Suggested:      iss.Suggested,
			Reason:         reason,
			Priority:       PriorityForSeverity(iss.Severity),
		})
	}
	return suggestions
}

const checkerSystemPrompt = `You are a narrative continuity editor. You receive one paragraph ` +
	`of a chapter with surrounding context, and you report continuity issues as JSON. ` +
	`Respond with a single JSON object of the form {"issues": [...]} and nothing else. ` +
	`Each issue has: "dimension", "description", "original_text" (a verbatim excerpt of ` +
	`the paragraph), "suggested_text" (your replacement), "reason", and "severity" ` +
	`("high", "medium", or "low"). Report an empty issues array when the paragraph is clean.`

func (c *Checker) buildPrompt(req CheckRequest) string {
	var b strings.Builder

	dims := req.Dimensions
	if len(dims) == 0 {
		dims = narrative.ValidDimensions()
	}
	b.WriteString("Check the paragraph against these dimensions:\n")
	for _, d := range dims {
		if rubric, ok := dimensionRubric[d]; ok {
			fmt.Fprintf(&b, "- %s: %s\n", d, rubric)
		}
	}

	if req.Context != "" {
		b.WriteString("\n## Story bible\n")
		b.WriteString(req.Context)
		b.WriteString("\n")
	}

	if len(req.Retrieved) > 0 {
		b.WriteString("\n## Retrieved context\n")
		for _, snip := range req.Retrieved {
			b.WriteString("- ")
			b.WriteString(snip)
			b.WriteString("\n")
		}
	}

	recent := req.Recent
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	if len(recent) > 0 {
		b.WriteString("\n## Preceding paragraphs\n")
		for _, p := range recent {
			b.WriteString(p)
			b.WriteString("\n\n")
		}
	}

	fmt.Fprintf(&b, "\n## Paragraph under review (index %d)\n%s\n", req.Index, req.Paragraph)
	return b.String()
}

// parseIssues tolerates fenced output, prose around the JSON, and an
// issues payload that is either an object or a bare array.
func parseIssues(content string) ([]checkIssue, error) {
	raw, err := providers.ExtractJSON(content)
	if err != nil {
		return nil, err
	}

	var wrapped struct {
		Issues []checkIssue `json:"issues"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Issues != nil {
		return wrapped.Issues, nil
	}

	var bare []checkIssue
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare, nil
	}

	// An object without an issues key still counts as "clean" when it is
	// valid JSON; anything else is unparseable.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("issues payload: %w", err)
	}
	return nil, nil
}

func validDimension(d string) bool {
	for _, v := range narrative.ValidDimensions() {
		if v == d {
			return true
		}
	}
	return false
}
