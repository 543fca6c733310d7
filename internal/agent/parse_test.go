package agent

import (
	"strings"
	"testing"

	"github.com/proseforge/redline/internal/tools"
)

func TestParse(t *testing.T) {
	t.Run("both regions", func(t *testing.T) {
		p, err := Parse(`THINKING:
The paragraph introduces Mara without her lamp; I should check her state.

ACTION:
{"tool": "lookup_character", "parameters": {"name": "Mara"}, "reason": "verify state"}`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(p.Thinking, "check her state") {
			t.Errorf("thinking = %q", p.Thinking)
		}
		if p.Call == nil || p.Call.Name != tools.LookupCharacter {
			t.Fatalf("call = %+v", p.Call)
		}
	})

	t.Run("fenced action json", func(t *testing.T) {
		p, err := Parse("THINKING:\nquick look\n\nACTION:\n```json\n{\"tool\": \"quick_check\"}\n```")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Call == nil || p.Call.Name != tools.QuickCheck {
			t.Fatalf("call = %+v", p.Call)
		}
	})

	t.Run("lowercase labels", func(t *testing.T) {
		p, err := Parse("thinking:\nok\naction:\n{\"tool\": \"next_paragraph\"}")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Call == nil || p.Call.Name != tools.NextParagraph {
			t.Fatalf("call = %+v", p.Call)
		}
	})

	t.Run("no action block", func(t *testing.T) {
		p, err := Parse("I think this paragraph is fine and has no issues.")
		if err == nil {
			t.Fatal("expected an error")
		}
		if p.Call != nil {
			t.Errorf("call = %+v, want nil", p.Call)
		}
		if p.Thinking == "" {
			t.Error("whole turn should land in thinking")
		}
	})

	t.Run("action without json", func(t *testing.T) {
		p, err := Parse("THINKING:\nhm\n\nACTION:\nI will look up the character now.")
		if err == nil {
			t.Fatal("expected an error")
		}
		if p.Call != nil {
			t.Errorf("call = %+v, want nil", p.Call)
		}
	})

	t.Run("unknown tool rejected", func(t *testing.T) {
		if _, err := Parse("THINKING:\nx\nACTION:\n{\"tool\": \"summon\"}"); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("invalid params rejected", func(t *testing.T) {
		if _, err := Parse("THINKING:\nx\nACTION:\n{\"tool\": \"search_similar\", \"parameters\": {}}"); err == nil {
			t.Fatal("expected an error")
		}
	})
}
