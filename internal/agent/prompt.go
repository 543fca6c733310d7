package agent

import (
	"fmt"
	"strings"

	"github.com/proseforge/redline/internal/tools"
)

// systemPrompt renders the fixed instruction block that opens every run
// conversation: the editor role, the tool catalog, and the two-part
// response contract.
func systemPrompt(state *RunState) string {
	var b strings.Builder

	b.WriteString(`You are a narrative continuity editor working through a chapter one paragraph at a time. You inspect each paragraph with the tools below, record concrete revision suggestions where continuity breaks, and advance until the chapter is covered.

Work cheap-first: analyze_paragraph and quick_check before deep_check. Record a suggestion only when you can quote the exact text that should change. When a paragraph is handled, call finish_paragraph; when every paragraph is handled, call complete_analysis with a short summary.

`)

	fmt.Fprintf(&b, "Dimensions in scope for this run: %s.\n\n", strings.Join(state.Dimensions, ", "))

	b.WriteString("## Tools\n")
	b.WriteString(tools.PromptCatalog())

	b.WriteString(`
## Response format

Every response has exactly two parts, in this order:

THINKING:
Your reasoning about the current paragraph, in plain text.

ACTION:
{"tool": "<tool name>", "parameters": {...}, "reason": "<one line>"}

The ACTION block holds exactly one JSON object and nothing else. Never skip the ACTION block.
`)

	if state.Bible != nil {
		if ctx := state.Bible.ContextText(); ctx != "" {
			b.WriteString("\n## Story bible\n")
			b.WriteString(ctx)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// openingMessage seeds the conversation with the run framing and the
// first paragraph.
func openingMessage(state *RunState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chapter %q of project %q, %d paragraph(s) selected for analysis.\n\n",
		state.Chapter, state.Project, len(state.Paragraphs))
	if text, ok := state.CurrentParagraph(); ok {
		fmt.Fprintf(&b, "Paragraph %d:\n%s\n", state.CurrentIndex(), text)
	}
	b.WriteString("\nBegin with this paragraph.")
	return b.String()
}

// paragraphMessage frames the paragraph the cursor just moved to.
func paragraphMessage(state *RunState) string {
	text, ok := state.CurrentParagraph()
	if !ok {
		return "All selected paragraphs are handled. Call complete_analysis with a short summary."
	}
	return fmt.Sprintf("Now at paragraph %d:\n%s", state.CurrentIndex(), text)
}

const correctiveInstruction = `Your last response had no usable ACTION block. Respond again with a THINKING: section followed by an ACTION: section containing exactly one JSON tool call.`

// preview truncates text for event payloads.
func preview(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "…"
}
