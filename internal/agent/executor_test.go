package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/proseforge/redline/internal/narrative"
	"github.com/proseforge/redline/internal/tools"
)

func testBible() *narrative.Bible {
	return &narrative.Bible{
		Title: "The Harbor Lights",
		Tone:  "melancholy",
		Characters: []narrative.Character{
			{ID: "mara", Name: "Mara", Aliases: []string{"the keeper"}, State: "grieving"},
		},
		Foreshadows: []narrative.Foreshadow{
			{ID: "f1", Content: "the lamp oil is running out", Status: narrative.ForeshadowPlanted},
			{ID: "f2", Content: "the letter was burned", Status: narrative.ForeshadowResolved},
		},
	}
}

func testState() *RunState {
	return NewRunState("harbor", "ch1", []string{
		"Mara trimmed the wick and watched the dark water.",
		"The next morning, Tomas knocked twice and let himself in.",
	}, nil, testBible(), nil)
}

func exec(t *testing.T, call string) (tools.Result, *RunState) {
	t.Helper()
	state := testState()
	e := NewExecutor(state, Deps{})
	c, err := tools.ParseCall([]byte(call))
	if err != nil {
		t.Fatalf("parse call: %v", err)
	}
	return e.Execute(t.Context(), c), state
}

func payload(t *testing.T, r tools.Result) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(r.Payload, &m); err != nil {
		t.Fatalf("payload: %v", err)
	}
	return m
}

func TestExecutorRetrieval(t *testing.T) {
	t.Run("search unavailable without backend", func(t *testing.T) {
		r, _ := exec(t, `{"tool": "search_similar", "parameters": {"query": "lamp"}}`)
		if !r.Success {
			t.Fatalf("result = %+v, want graceful success", r)
		}
		if p := payload(t, r); p["available"] != false {
			t.Errorf("payload = %v, want available=false", p)
		}
	})

	t.Run("character from bible fallback", func(t *testing.T) {
		r, state := exec(t, `{"tool": "lookup_character", "parameters": {"name": "the keeper"}}`)
		p := payload(t, r)
		if p["found"] != true {
			t.Fatalf("payload = %v", p)
		}
		if state.Characters["mara"] == nil {
			t.Error("lookup should cache under the canonical name")
		}
	})

	t.Run("character miss", func(t *testing.T) {
		r, _ := exec(t, `{"tool": "lookup_character", "parameters": {"name": "Quillon"}}`)
		if p := payload(t, r); p["found"] != false {
			t.Errorf("payload = %v, want found=false", p)
		}
	})

	t.Run("active foreshadows only", func(t *testing.T) {
		r, _ := exec(t, `{"tool": "lookup_foreshadow"}`)
		p := payload(t, r)
		if p["count"] != float64(1) {
			t.Errorf("payload = %v, want one planted foreshadow", p)
		}
	})

	t.Run("previous paragraphs at start", func(t *testing.T) {
		r, _ := exec(t, `{"tool": "previous_paragraphs"}`)
		if p := payload(t, r); p["count"] != float64(0) {
			t.Errorf("payload = %v, want empty", p)
		}
	})
}

func TestExecutorAnalysis(t *testing.T) {
	t.Run("analyze caches", func(t *testing.T) {
		state := testState()
		e := NewExecutor(state, Deps{})
		c, _ := tools.ParseCall([]byte(`{"tool": "analyze_paragraph"}`))
		r := e.Execute(t.Context(), c)
		if !r.Success {
			t.Fatalf("result = %+v", r)
		}
		if state.Analyses[0] == nil {
			t.Fatal("analysis not cached")
		}
		if got := state.Analyses[0].Characters; len(got) == 0 || got[0] != "Mara" {
			t.Errorf("characters = %v", got)
		}
	})

	t.Run("deep check falls back when unwired", func(t *testing.T) {
		r, _ := exec(t, `{"tool": "deep_check"}`)
		if !r.Success {
			t.Fatalf("result = %+v", r)
		}
		p := payload(t, r)
		if p["fallback"] != true {
			t.Fatalf("payload = %v, want fallback", p)
		}
		alts, _ := p["alternatives"].([]any)
		if len(alts) == 0 {
			t.Error("fallback payload should name cheaper tools")
		}
	})
}

func TestExecutorOutput(t *testing.T) {
	t.Run("suggestion requires verbatim excerpt", func(t *testing.T) {
		r, state := exec(t, `{"tool": "record_suggestion", "parameters": {
			"original_text": "watched the bright water",
			"suggested_text": "watched the dark water",
			"reason": "water was dark two scenes ago"
		}}`)
		if r.Success {
			t.Fatalf("result = %+v, want failure", r)
		}
		if !strings.Contains(r.Error, "verbatim") {
			t.Errorf("error = %q", r.Error)
		}
		if len(state.Suggestions) != 0 {
			t.Error("failed suggestion must not be recorded")
		}
	})

	t.Run("suggestion recorded with defaults", func(t *testing.T) {
		r, state := exec(t, `{"tool": "record_suggestion", "parameters": {
			"original_text": "watched the dark water",
			"suggested_text": "watched the black water",
			"reason": "earlier paragraphs call it black"
		}}`)
		if !r.Success {
			t.Fatalf("result = %+v", r)
		}
		if len(state.Suggestions) != 1 {
			t.Fatalf("suggestions = %v", state.Suggestions)
		}
		sug := state.Suggestions[0]
		if sug.Category != narrative.DimCoherence || sug.Priority != narrative.PriorityMedium {
			t.Errorf("suggestion = %+v", sug)
		}
		if sug.ParagraphIndex != 0 {
			t.Errorf("paragraph index = %d", sug.ParagraphIndex)
		}
	})

	t.Run("observation recorded", func(t *testing.T) {
		_, state := exec(t, `{"tool": "record_observation", "parameters": {"content": "wick trimming mirrors ch3"}}`)
		if len(state.Observations) != 1 {
			t.Fatalf("observations = %v", state.Observations)
		}
	})
}

func TestExecutorControl(t *testing.T) {
	t.Run("finish advances and marks visited", func(t *testing.T) {
		state := testState()
		e := NewExecutor(state, Deps{})
		c, _ := tools.ParseCall([]byte(`{"tool": "finish_paragraph"}`))
		r := e.Execute(t.Context(), c)
		p := payload(t, r)
		if p["end"] != false || state.Current != 1 {
			t.Fatalf("payload = %v, cursor = %d", p, state.Current)
		}
		if !state.Visited(0) {
			t.Error("finished paragraph not marked visited")
		}

		// Advancing off the end reports end-of-chapter.
		r = e.Execute(t.Context(), c)
		if p := payload(t, r); p["end"] != true {
			t.Fatalf("payload = %v, want end", p)
		}
	})

	t.Run("complete sets summary", func(t *testing.T) {
		r, state := exec(t, `{"tool": "complete_analysis", "parameters": {"summary": "two minor issues"}}`)
		if !r.Success || !state.Done || state.Summary != "two minor issues" {
			t.Fatalf("result = %+v, state done=%v summary=%q", r, state.Done, state.Summary)
		}
	})
}

func TestExecutorWithStore(t *testing.T) {
	store, err := narrative.OpenStore(t.TempDir() + "/narrative.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	if err := store.ImportBible(context.Background(), testBible()); err != nil {
		t.Fatalf("import bible: %v", err)
	}

	state := testState()
	e := NewExecutor(state, Deps{Store: store, Searcher: narrative.NewStoreSearcher(store)})

	c, _ := tools.ParseCall([]byte(`{"tool": "lookup_character", "parameters": {"name": "Mara"}}`))
	r := e.Execute(t.Context(), c)
	if p := payload(t, r); p["found"] != true {
		t.Fatalf("payload = %v", p)
	}

	c, _ = tools.ParseCall([]byte(`{"tool": "search_similar", "parameters": {"query": "lamp oil"}}`))
	r = e.Execute(t.Context(), c)
	p := payload(t, r)
	if p["available"] != true {
		t.Fatalf("payload = %v", p)
	}
	matches, _ := p["matches"].([]any)
	if len(matches) == 0 {
		t.Error("expected at least one match for planted foreshadow text")
	}
}

type panicSearcher struct{}

func (panicSearcher) Search(ctx context.Context, query string, limit int) ([]narrative.Match, error) {
	panic("searcher backend wedged")
}

func TestExecutorHandlerPanic(t *testing.T) {
	state := testState()
	e := NewExecutor(state, Deps{Searcher: panicSearcher{}})

	c, _ := tools.ParseCall([]byte(`{"tool": "search_similar", "parameters": {"query": "lamp"}}`))
	r := e.Execute(t.Context(), c)
	if r.Success {
		t.Fatalf("result = %+v, want failure from panicking handler", r)
	}
	if !strings.Contains(r.Error, "internal error") {
		t.Errorf("error = %q, want internal error text", r.Error)
	}

	// The executor stays usable after a handler panic.
	c, _ = tools.ParseCall([]byte(`{"tool": "analyze_paragraph"}`))
	if r = e.Execute(t.Context(), c); !r.Success {
		t.Fatalf("subsequent call failed: %+v", r)
	}
}

func TestExecutorPreviousParagraphsFromStore(t *testing.T) {
	store, err := narrative.OpenStore(t.TempDir() + "/narrative.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	chapter := []string{
		"Mara trimmed the wick.",
		"The fog rolled in before dusk.",
		"Tomas knocked twice and let himself in.",
		"Neither of them mentioned the empty chair.",
	}
	if err := store.SaveParagraphs(context.Background(), "harbor", "ch1", chapter); err != nil {
		t.Fatalf("save paragraphs: %v", err)
	}

	// The run covers only the back half of the chapter; earlier
	// paragraphs come from the store.
	state := NewRunState("harbor", "ch1", chapter[2:], []int{2, 3}, testBible(), nil)
	e := NewExecutor(state, Deps{Store: store})

	c, _ := tools.ParseCall([]byte(`{"tool": "previous_paragraphs", "parameters": {"count": 2}}`))
	r := e.Execute(t.Context(), c)
	p := payload(t, r)
	if p["count"] != float64(2) {
		t.Fatalf("payload = %v, want two stored paragraphs", p)
	}
	got, _ := p["paragraphs"].([]any)
	if len(got) != 2 || got[0] != chapter[0] || got[1] != chapter[1] {
		t.Errorf("paragraphs = %v, want the two before the run window", got)
	}
}
