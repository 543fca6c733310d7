package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/proseforge/redline/internal/coherence"
	"github.com/proseforge/redline/internal/narrative"
	"github.com/proseforge/redline/internal/tools"
)

// Capabilities records which optional backends are wired for this run.
// Handlers that need an absent backend degrade to a structured
// "unavailable" payload instead of failing.
type Capabilities struct {
	Search    bool
	Store     bool
	DeepCheck bool
}

// Deps are the collaborators an Executor dispatches into.
type Deps struct {
	Store    *narrative.Store
	Searcher narrative.SimilaritySearcher
	Checker  *coherence.Checker
	Logger   *slog.Logger
}

// Executor dispatches decoded tool calls against one run's state. It is
// single-threaded by contract: only the owning loop calls Execute.
type Executor struct {
	state    *RunState
	store    *narrative.Store
	searcher narrative.SimilaritySearcher
	checker  *coherence.Checker
	caps     Capabilities
	logger   *slog.Logger
}

// NewExecutor wires an executor for one run. Capabilities are derived
// from which collaborators are non-nil.
func NewExecutor(state *RunState, deps Deps) *Executor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		state:    state,
		store:    deps.Store,
		searcher: deps.Searcher,
		checker:  deps.Checker,
		caps: Capabilities{
			Search:    deps.Searcher != nil,
			Store:     deps.Store != nil,
			DeepCheck: deps.Checker != nil,
		},
		logger: logger,
	}
}

// Execute runs one call and always returns exactly one result. Panics
// inside a handler become failure results; a failing tool never crashes
// the loop, it becomes an observation the model reacts to.
func (e *Executor) Execute(ctx context.Context, call *tools.Call) (res tools.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool handler panicked", "tool", call.Name, "panic", r)
			res = tools.Fail(call.Name, fmt.Sprintf("internal error in %s: %v", call.Name, r))
		}
	}()

	switch p := call.Params.(type) {
	case *tools.SearchSimilarParams:
		return e.searchSimilar(ctx, p)
	case *tools.LookupCharacterParams:
		return e.lookupCharacter(ctx, p)
	case *tools.LookupForeshadowParams:
		return e.lookupForeshadow(ctx, p)
	case *tools.PreviousParagraphsParams:
		return e.previousParagraphs(ctx, p)
	case *tools.AnalyzeParagraphParams:
		return e.analyzeParagraph()
	case *tools.QuickCheckParams:
		return e.quickCheck()
	case *tools.DeepCheckParams:
		return e.deepCheck(ctx, p)
	case *tools.RecordSuggestionParams:
		return e.recordSuggestion(p)
	case *tools.RecordObservationParams:
		return e.recordObservation(p)
	case *tools.NextParagraphParams:
		return e.advance(tools.NextParagraph, false, "")
	case *tools.FinishParagraphParams:
		return e.advance(tools.FinishParagraph, true, p.Note)
	case *tools.CompleteAnalysisParams:
		return e.complete(p)
	default:
		return tools.Fail(call.Name, fmt.Sprintf("unknown tool %q", call.Name))
	}
}

// unavailablePayload is the graceful degradation shape for retrieval
// tools whose backend is not wired.
type unavailablePayload struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

func unavailable(tool tools.Name, what string) tools.Result {
	return tools.OK(tool, unavailablePayload{
		Available: false,
		Message:   fmt.Sprintf("%s backend is not configured for this run; continue with in-memory tools", what),
	})
}

func (e *Executor) searchSimilar(ctx context.Context, p *tools.SearchSimilarParams) tools.Result {
	if !e.caps.Search {
		return unavailable(tools.SearchSimilar, "similarity search")
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 5
	}
	matches, err := e.searcher.Search(ctx, p.Query, limit)
	if err != nil {
		return tools.Fail(tools.SearchSimilar, "search failed: "+err.Error())
	}
	return tools.OK(tools.SearchSimilar, map[string]any{
		"available": true,
		"matches":   matches,
	})
}

func (e *Executor) lookupCharacter(ctx context.Context, p *tools.LookupCharacterParams) tools.Result {
	name := strings.TrimSpace(p.Name)

	if c, ok := e.state.Characters[strings.ToLower(name)]; ok {
		return tools.OK(tools.LookupCharacter, map[string]any{"found": true, "character": c, "cached": true})
	}

	var found *narrative.Character
	if e.caps.Store {
		c, err := e.store.LookupCharacter(ctx, name)
		if err != nil {
			return tools.Fail(tools.LookupCharacter, "character lookup failed: "+err.Error())
		}
		found = c
	}
	if found == nil && e.state.Bible != nil {
		found = e.state.Bible.CharacterByName(name)
	}
	if found == nil {
		return tools.OK(tools.LookupCharacter, map[string]any{
			"found":   false,
			"message": fmt.Sprintf("no character named %q in the bible or store", name),
		})
	}
	e.state.Characters[strings.ToLower(found.Name)] = found
	e.state.Characters[strings.ToLower(name)] = found
	return tools.OK(tools.LookupCharacter, map[string]any{"found": true, "character": found})
}

func (e *Executor) lookupForeshadow(ctx context.Context, p *tools.LookupForeshadowParams) tools.Result {
	var active []narrative.Foreshadow
	if e.caps.Store {
		fs, err := e.store.ActiveForeshadows(ctx, p.Query)
		if err != nil {
			return tools.Fail(tools.LookupForeshadow, "foreshadow lookup failed: "+err.Error())
		}
		active = fs
	} else if e.state.Bible != nil {
		q := strings.ToLower(p.Query)
		for _, f := range e.state.Bible.Foreshadows {
			if f.Status != narrative.ForeshadowPlanted {
				continue
			}
			if q == "" || strings.Contains(strings.ToLower(f.Content), q) {
				active = append(active, f)
			}
		}
	} else {
		return unavailable(tools.LookupForeshadow, "foreshadow")
	}
	return tools.OK(tools.LookupForeshadow, map[string]any{
		"count":       len(active),
		"foreshadows": active,
	})
}

func (e *Executor) previousParagraphs(ctx context.Context, p *tools.PreviousParagraphsParams) tools.Result {
	count := p.Count
	if count <= 0 {
		count = 3
	}
	start := e.state.Current - count
	if start < 0 {
		start = 0
	}
	prior := e.state.Paragraphs[start:max(start, e.state.Current)]

	// A run over a paragraph subset starts mid-chapter; anything before
	// the run's window lives only in the store.
	if len(prior) < count && e.caps.Store && len(e.state.Indices) > 0 {
		first := e.state.Indices[0]
		if first > 0 {
			stored, err := e.store.PreviousParagraphs(ctx, e.state.Project, e.state.Chapter, first, count-len(prior))
			if err != nil {
				e.logger.Warn("stored chapter context unavailable", "error", err)
			} else {
				prior = append(stored, prior...)
			}
		}
	}

	return tools.OK(tools.PreviousParagraphs, map[string]any{
		"count":      len(prior),
		"paragraphs": prior,
	})
}

func (e *Executor) analyzeParagraph() tools.Result {
	text, ok := e.state.CurrentParagraph()
	if !ok {
		return tools.Fail(tools.AnalyzeParagraph, "cursor is past the last paragraph")
	}
	a := e.analysisFor(e.state.Current, text)
	return tools.OK(tools.AnalyzeParagraph, a)
}

// analysisFor returns the cached analysis for run position pos,
// computing and caching it when absent.
func (e *Executor) analysisFor(pos int, text string) *narrative.ParagraphAnalysis {
	if a, ok := e.state.Analyses[pos]; ok {
		return a
	}
	a := coherence.Analyze(e.state.Indices[pos], text, e.state.Bible)
	e.state.Analyses[pos] = &a
	return &a
}

func (e *Executor) quickCheck() tools.Result {
	text, ok := e.state.CurrentParagraph()
	if !ok {
		return tools.Fail(tools.QuickCheck, "cursor is past the last paragraph")
	}
	cur := e.analysisFor(e.state.Current, text)
	var prev *narrative.ParagraphAnalysis
	if e.state.Current > 0 {
		prev = e.analysisFor(e.state.Current-1, e.state.Paragraphs[e.state.Current-1])
	}
	issues := coherence.QuickCheck(e.state.Bible, prev, cur, coherence.DefaultQuickOptions())
	return tools.OK(tools.QuickCheck, map[string]any{
		"count":  len(issues),
		"issues": issues,
	})
}

// fallbackPayload is returned when the deep check cannot run; it points
// the model at the cheaper tools instead.
type fallbackPayload struct {
	Fallback     bool     `json:"fallback"`
	Reason       string   `json:"reason"` // quota, timeout, network, other
	Message      string   `json:"message"`
	Alternatives []string `json:"alternatives"`
}

func (e *Executor) deepCheck(ctx context.Context, p *tools.DeepCheckParams) tools.Result {
	if !e.caps.DeepCheck {
		return tools.OK(tools.DeepCheck, fallbackPayload{
			Fallback:     true,
			Reason:       "other",
			Message:      "deep check is not wired for this run",
			Alternatives: []string{string(tools.QuickCheck), string(tools.AnalyzeParagraph)},
		})
	}
	text, ok := e.state.CurrentParagraph()
	if !ok {
		return tools.Fail(tools.DeepCheck, "cursor is past the last paragraph")
	}

	dims := p.Dimensions
	if len(dims) == 0 {
		dims = e.state.Dimensions
	}
	var recent []string
	if start := e.state.Current - 3; start >= 0 {
		recent = e.state.Paragraphs[start:e.state.Current]
	} else {
		recent = e.state.Paragraphs[:e.state.Current]
	}
	var bibleCtx string
	if e.state.Bible != nil {
		bibleCtx = e.state.Bible.ContextText()
	}
	retrieved := e.retrieveFor(ctx, text)

	suggestions := e.checker.CheckParagraph(ctx, coherence.CheckRequest{
		Paragraph:  text,
		Index:      e.state.CurrentIndex(),
		Recent:     recent,
		Context:    bibleCtx,
		Retrieved:  retrieved,
		Dimensions: dims,
	})
	return tools.OK(tools.DeepCheck, map[string]any{
		"count":       len(suggestions),
		"suggestions": suggestions,
	})
}

// retrieveFor gathers a few similarity matches to ground the deep check.
// Best effort: errors and an unwired searcher both yield nothing.
func (e *Executor) retrieveFor(ctx context.Context, text string) []string {
	if !e.caps.Search {
		return nil
	}
	matches, err := e.searcher.Search(ctx, text, 3)
	if err != nil {
		e.logger.Warn("retrieval for deep check failed", "error", err)
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, fmt.Sprintf("%s %s: %s", m.Kind, m.Ref, m.Text))
	}
	return out
}

func (e *Executor) recordSuggestion(p *tools.RecordSuggestionParams) tools.Result {
	text, ok := e.state.CurrentParagraph()
	if !ok {
		return tools.Fail(tools.RecordSuggestion, "cursor is past the last paragraph")
	}
	if !strings.Contains(text, p.Original) {
		return tools.Fail(tools.RecordSuggestion,
			"original_text is not a verbatim excerpt of the current paragraph; quote it exactly")
	}
	category := p.Category
	if category == "" {
		category = narrative.DimCoherence
	}
	sug := narrative.Suggestion{
		ParagraphIndex: e.state.CurrentIndex(),
		Category:       category,
		Original:       p.Original,
		Suggested:      p.Suggested,
		Reason:         p.Reason,
		Priority:       coherence.PriorityForSeverity(p.Severity),
	}
	e.state.Suggestions = append(e.state.Suggestions, sug)
	return tools.OK(tools.RecordSuggestion, map[string]any{
		"recorded": true,
		"position": len(e.state.Suggestions),
	})
}

func (e *Executor) recordObservation(p *tools.RecordObservationParams) tools.Result {
	e.state.Observations = append(e.state.Observations,
		fmt.Sprintf("[p%d] %s", e.state.CurrentIndex(), p.Content))
	return tools.OK(tools.RecordObservation, map[string]any{"recorded": true})
}

func (e *Executor) advance(tool tools.Name, finish bool, note string) tools.Result {
	if finish {
		e.state.MarkVisited()
		if note != "" {
			e.state.Observations = append(e.state.Observations,
				fmt.Sprintf("[p%d done] %s", e.state.CurrentIndex(), note))
		}
	}
	if !e.state.Advance() {
		return tools.OK(tool, map[string]any{
			"end":     true,
			"message": "no paragraphs remain; call complete_analysis",
		})
	}
	text, _ := e.state.CurrentParagraph()
	return tools.OK(tool, map[string]any{
		"end":   false,
		"index": e.state.CurrentIndex(),
		"text":  text,
	})
}

func (e *Executor) complete(p *tools.CompleteAnalysisParams) tools.Result {
	e.state.Done = true
	e.state.Summary = p.Summary
	return tools.OK(tools.CompleteAnalysis, map[string]any{"complete": true})
}
