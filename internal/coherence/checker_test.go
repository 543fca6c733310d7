package coherence

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/proseforge/redline/internal/narrative"
	"github.com/proseforge/redline/internal/providers"
)

func TestCheckParagraph(t *testing.T) {
	req := CheckRequest{
		Paragraph:  "Mara lit the lamp and waited for the tide.",
		Index:      2,
		Recent:     []string{"p0", "p1"},
		Context:    "Title: The Harbor Lights",
		Retrieved:  []string{"character Mara: lighthouse keeper"},
		Dimensions: []string{narrative.DimCharacter, narrative.DimTimeline},
	}

	t.Run("issues map to suggestions", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.Enqueue(`{"issues": [
			{"dimension": "character", "description": "wrong name",
			 "original_text": "Mara lit the lamp", "suggested_text": "Mara lit the beacon",
			 "reason": "the bible calls it a beacon", "severity": "high"},
			{"dimension": "timeline", "original_text": "waited for the tide",
			 "suggested_text": "waited for the morning tide", "reason": "tide was morning", "severity": "low"}
		]}`)
		c := NewChecker(mock)

		got := c.CheckParagraph(t.Context(), req)
		if len(got) != 2 {
			t.Fatalf("got %d suggestions, want 2", len(got))
		}
		if got[0].ParagraphIndex != 2 || got[0].Category != narrative.DimCharacter {
			t.Errorf("first suggestion = %+v", got[0])
		}
		if got[0].Priority != narrative.PriorityHigh || got[1].Priority != narrative.PriorityLow {
			t.Errorf("priorities = %d, %d", got[0].Priority, got[1].Priority)
		}
	})

	t.Run("fenced output parses", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.Enqueue("```json\n{\"issues\": [{\"dimension\": \"style\", \"original_text\": \"x\", \"suggested_text\": \"y\", \"reason\": \"tone\", \"severity\": \"medium\"}]}\n```")
		c := NewChecker(mock)

		got := c.CheckParagraph(t.Context(), req)
		if len(got) != 1 || got[0].Priority != narrative.PriorityMedium {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("bare array accepted", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.Enqueue(`[{"dimension": "scene", "original_text": "a", "suggested_text": "b", "reason": "r", "severity": "low"}]`)
		c := NewChecker(mock)

		if got := c.CheckParagraph(t.Context(), req); len(got) != 1 {
			t.Fatalf("got %+v, want 1 suggestion", got)
		}
	})

	t.Run("unknown dimension falls back to coherence", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.Enqueue(`{"issues": [{"dimension": "vibes", "original_text": "a", "suggested_text": "b", "reason": "r", "severity": "medium"}]}`)
		c := NewChecker(mock)

		got := c.CheckParagraph(t.Context(), req)
		if len(got) != 1 || got[0].Category != narrative.DimCoherence {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("malformed output yields empty", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.Enqueue("I see no structural problems worth flagging here.")
		c := NewChecker(mock)

		if got := c.CheckParagraph(t.Context(), req); len(got) != 0 {
			t.Fatalf("got %+v, want none", got)
		}
	})

	t.Run("request failure yields empty", func(t *testing.T) {
		mock := providers.NewMockClient()
		mock.ShouldFail = true
		c := NewChecker(mock)

		if got := c.CheckParagraph(t.Context(), req); len(got) != 0 {
			t.Fatalf("got %+v, want none", got)
		}
	})

	t.Run("nil client yields empty", func(t *testing.T) {
		c := NewChecker(nil)
		if got := c.CheckParagraph(t.Context(), req); len(got) != 0 {
			t.Fatalf("got %+v, want none", got)
		}
	})
}

func TestCheckerPrompt(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue(`{"issues": []}`)
	c := NewChecker(mock, WithModel("test-model"), WithTemperature(0.1))

	c.CheckParagraph(t.Context(), CheckRequest{
		Paragraph:  "The lamp guttered.",
		Index:      7,
		Recent:     []string{"a", "b", "c", "d"},
		Context:    "Tone: melancholy",
		Retrieved:  []string{"foreshadow: the lamp oil is running out"},
		Dimensions: []string{narrative.DimForeshadow},
	})

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	sent := reqs[0]
	if sent.Model != "test-model" {
		t.Errorf("model = %q", sent.Model)
	}
	if len(sent.Messages) != 2 || sent.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", sent.Messages)
	}

	prompt := sent.Messages[1].Content
	for _, want := range []string{
		"The lamp guttered.",
		"index 7",
		"foreshadowing",
		"Tone: melancholy",
		"lamp oil is running out",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	// Oldest of four prior paragraphs must be trimmed.
	if strings.Contains(prompt, "\na\n") {
		t.Error("prompt should keep only the last 3 prior paragraphs")
	}
	// Unrequested dimensions stay out of the rubric.
	if strings.Contains(prompt, "timeline:") {
		t.Error("prompt includes a dimension that was not requested")
	}
}

type deadlineClient struct {
	sawDeadline bool
	deadline    time.Time
}

func (c *deadlineClient) Name() string { return "deadline" }

func (c *deadlineClient) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
	c.deadline, c.sawDeadline = ctx.Deadline()
	return &providers.ChatResult{Success: true, Content: `{"issues": []}`}, nil
}

func TestCheckerTimeout(t *testing.T) {
	client := &deadlineClient{}
	c := NewChecker(client, WithTimeout(5*time.Second))

	c.CheckParagraph(t.Context(), CheckRequest{Paragraph: "The lamp guttered.", Index: 0})

	if !client.sawDeadline {
		t.Fatal("deep check call carried no deadline")
	}
	if remaining := time.Until(client.deadline); remaining > 5*time.Second {
		t.Errorf("deadline %s out, want at most 5s", remaining)
	}
}
