package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/proseforge/redline/internal/providers"
	"github.com/proseforge/redline/internal/tools"
)

// Parsed is one model turn split into its two regions: free-text
// reasoning and at most one structured tool call.
type Parsed struct {
	Thinking string
	Call     *tools.Call
}

var (
	thinkingRe = regexp.MustCompile(`(?is)THINKING:\s*(.*?)(?:ACTION:|$)`)
	actionRe   = regexp.MustCompile(`(?is)ACTION:\s*(.*)$`)
)

// Parse splits a model response into thinking text and a tool call.
//
// The protocol is two labeled regions, THINKING: then ACTION:, with the
// action region holding one JSON object. Parsing is lenient about
// whitespace, casing of the JSON, and code fences around it, but a
// missing or unparseable action is an error: the loop responds with a
// corrective instruction rather than executing anything.
func Parse(text string) (*Parsed, error) {
	p := &Parsed{}

	if m := thinkingRe.FindStringSubmatch(text); m != nil {
		p.Thinking = strings.TrimSpace(m[1])
	}

	m := actionRe.FindStringSubmatch(text)
	if m == nil {
		// No labels at all: treat the whole turn as thinking.
		if p.Thinking == "" {
			p.Thinking = strings.TrimSpace(text)
		}
		return p, fmt.Errorf("no ACTION block in response")
	}

	raw, err := providers.ExtractJSON(m[1])
	if err != nil {
		return p, fmt.Errorf("ACTION block holds no JSON object: %w", err)
	}
	call, err := tools.ParseCall(raw)
	if err != nil {
		return p, fmt.Errorf("ACTION block: %w", err)
	}
	p.Call = call
	return p, nil
}
