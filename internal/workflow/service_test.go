package workflow

import (
	"log/slog"
	"testing"

	"github.com/proseforge/redline/internal/config"
	"github.com/proseforge/redline/internal/events"
	"github.com/proseforge/redline/internal/home"
	"github.com/proseforge/redline/internal/providers"
	"github.com/proseforge/redline/internal/session"
)

func turn(tool, params string) string {
	if params == "" {
		params = "{}"
	}
	return "THINKING:\nnext step\n\nACTION:\n" +
		`{"tool": "` + tool + `", "parameters": ` + params + `, "reason": "test"}`
}

func newTestService(t *testing.T, mock *providers.MockClient) *Service {
	t.Helper()
	dir, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New: %v", err)
	}
	registry := providers.NewRegistry()
	registry.RegisterLLM("mock", mock)

	svc, err := NewService(Config{
		Home:     dir,
		Registry: registry,
		Sessions: session.NewController(nil),
		Defaults: config.DefaultsCfg{
			LLMProvider:     "mock",
			Mode:            "auto",
			MaxIterations:   30,
			MaxPerParagraph: 8,
			PauseTimeoutSec: 2,
		},
		Logger: slog.Default(),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func drain(t *testing.T, run *Run) []events.Event {
	t.Helper()
	var got []events.Event
	for e := range run.Events {
		got = append(got, e)
	}
	return got
}

func TestAnalyzeValidation(t *testing.T) {
	svc := newTestService(t, providers.NewMockClient())

	cases := []struct {
		name string
		req  AnalyzeRequest
	}{
		{"missing project", AnalyzeRequest{Chapter: "ch1", Text: "Some text."}},
		{"missing chapter", AnalyzeRequest{Project: "p", Text: "Some text."}},
		{"missing text", AnalyzeRequest{Project: "p", Chapter: "ch1"}},
		{"bad mode", AnalyzeRequest{Project: "p", Chapter: "ch1", Text: "Some text.", Mode: "turbo"}},
		{"bad dimension", AnalyzeRequest{Project: "p", Chapter: "ch1", Text: "Some text.", Dimensions: []string{"vibes"}}},
		{"paragraph out of range", AnalyzeRequest{Project: "p", Chapter: "ch1", Text: "Some text.", Paragraphs: []int{5}}},
		{"negative paragraph", AnalyzeRequest{Project: "p", Chapter: "ch1", Text: "Some text.", Paragraphs: []int{-1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Analyze(t.Context(), tc.req); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestAnalyzeRunsToCompletion(t *testing.T) {
	mock := providers.NewMockClient()
	mock.Enqueue(
		turn("analyze_paragraph", ""),
		turn("finish_paragraph", ""),
		turn("complete_analysis", `{"summary": "looks clean"}`),
	)
	svc := newTestService(t, mock)

	run, err := svc.Analyze(t.Context(), AnalyzeRequest{
		Project: "harbor",
		Chapter: "ch1",
		Text:    "Mira walked the pier at dawn.",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if run.SessionID == "" {
		t.Error("empty session id")
	}

	got := drain(t, run)
	if len(got) < 2 {
		t.Fatalf("got %d events, want at least workflow_start and workflow_complete", len(got))
	}
	if got[0].Name != events.WorkflowStart {
		t.Errorf("first event = %s, want workflow_start", got[0].Name)
	}
	if got[len(got)-1].Name != events.WorkflowComplete {
		t.Errorf("last event = %s, want workflow_complete", got[len(got)-1].Name)
	}

	// The session is gone once the run finishes.
	if _, ok := svc.Status(run.SessionID); ok {
		t.Error("session still registered after run completed")
	}
}

func TestAnalyzeUnknownProvider(t *testing.T) {
	svc := newTestService(t, providers.NewMockClient())
	_, err := svc.Analyze(t.Context(), AnalyzeRequest{
		Project:  "harbor",
		Chapter:  "ch1",
		Text:     "Some text.",
		Provider: "nope",
	})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestSelectParagraphs(t *testing.T) {
	all := []string{"a", "b", "c", "d"}

	t.Run("empty means all", func(t *testing.T) {
		texts, indices, err := selectParagraphs(all, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(texts) != 4 || indices != nil {
			t.Errorf("got %d texts, indices %v", len(texts), indices)
		}
	})

	t.Run("subset sorted and deduped", func(t *testing.T) {
		texts, indices, err := selectParagraphs(all, []int{3, 1, 3})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(texts) != 2 || texts[0] != "b" || texts[1] != "d" {
			t.Errorf("texts = %v", texts)
		}
		if indices[0] != 1 || indices[1] != 3 {
			t.Errorf("indices = %v", indices)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		if _, _, err := selectParagraphs(all, []int{4}); err == nil {
			t.Error("expected error for index 4")
		}
	})
}
