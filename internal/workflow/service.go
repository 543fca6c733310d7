// Package workflow assembles and runs chapter analysis workflows.
//
// The Service is the seam between the transport layers (HTTP server, CLI)
// and the agent loop: it loads the project's story bible and narrative
// store, registers a session, wires the executor, and runs the loop on
// its own goroutine, streaming events to the caller over a channel.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/proseforge/redline/internal/agent"
	"github.com/proseforge/redline/internal/coherence"
	"github.com/proseforge/redline/internal/config"
	"github.com/proseforge/redline/internal/events"
	"github.com/proseforge/redline/internal/home"
	"github.com/proseforge/redline/internal/metrics"
	"github.com/proseforge/redline/internal/narrative"
	"github.com/proseforge/redline/internal/providers"
	"github.com/proseforge/redline/internal/segment"
	"github.com/proseforge/redline/internal/session"
)

// AnalyzeRequest describes one chapter analysis run.
type AnalyzeRequest struct {
	// Project names the story; it selects the bible and narrative store.
	Project string `json:"project"`
	// Chapter identifies the chapter within the project.
	Chapter string `json:"chapter"`
	// Text is the full chapter text to analyze.
	Text string `json:"text"`
	// Paragraphs optionally restricts the run to a subset of paragraph
	// indices (chapter order). Empty means the whole chapter.
	Paragraphs []int `json:"paragraphs,omitempty"`
	// Dimensions optionally restricts the continuity dimensions checked.
	Dimensions []string `json:"dimensions,omitempty"`
	// Mode is "auto", "review", or "plan". Empty uses the configured
	// default.
	Mode string `json:"mode,omitempty"`
	// Provider optionally overrides the configured LLM provider.
	Provider string `json:"provider,omitempty"`
	// Model optionally overrides the provider's default model.
	Model string `json:"model,omitempty"`
}

// Run is a live analysis run. Events closes when the run finishes.
type Run struct {
	SessionID string
	Events    <-chan events.Event
}

// Service runs analysis workflows and fronts session lifecycle calls.
type Service struct {
	home     *home.Dir
	registry *providers.Registry
	sessions *session.Controller
	recorder *metrics.Recorder
	defaults config.DefaultsCfg
	logger   *slog.Logger
}

// Config holds Service dependencies. Home, Registry, and Sessions are
// required; Recorder is optional (no recorder means no call metrics).
type Config struct {
	Home     *home.Dir
	Registry *providers.Registry
	Sessions *session.Controller
	Recorder *metrics.Recorder
	Defaults config.DefaultsCfg
	Logger   *slog.Logger
}

// NewService creates a workflow service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Home == nil {
		return nil, errors.New("workflow: home dir is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("workflow: provider registry is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("workflow: session controller is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		home:     cfg.Home,
		registry: cfg.Registry,
		sessions: cfg.Sessions,
		recorder: cfg.Recorder,
		defaults: cfg.Defaults,
		logger:   logger,
	}, nil
}

// Analyze validates the request, assembles a run, and starts it on a new
// goroutine. The returned Run's event channel closes after the final
// workflow_complete event; the session is removed from the controller
// when the run ends.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*Run, error) {
	if req.Project == "" {
		return nil, errors.New("project is required")
	}
	if req.Chapter == "" {
		return nil, errors.New("chapter is required")
	}
	if req.Text == "" {
		return nil, errors.New("text is required")
	}

	mode := agent.Mode(req.Mode)
	if req.Mode == "" {
		mode = agent.Mode(s.defaults.Mode)
		if mode == "" {
			mode = agent.ModeAuto
		}
	}
	if !agent.ValidMode(mode) {
		return nil, fmt.Errorf("invalid mode %q", req.Mode)
	}

	dimensions := req.Dimensions
	if len(dimensions) == 0 {
		dimensions = s.defaults.Dimensions
	}
	for _, d := range dimensions {
		if !validDimension(d) {
			return nil, fmt.Errorf("invalid dimension %q", d)
		}
	}

	all := segment.Split(req.Text, segment.DefaultOptions())
	paragraphs, indices, err := selectParagraphs(all, req.Paragraphs)
	if err != nil {
		return nil, err
	}

	client, err := s.clientFor(req.Provider)
	if err != nil {
		return nil, err
	}

	bible := s.loadBible(req.Project)
	store := s.openStore(ctx, req.Project, bible, req.Chapter, all)

	sess := s.sessions.Create(req.Project, req.Chapter, len(paragraphs))

	if s.recorder != nil {
		client = metrics.NewRecordingClient(client, s.recorder, s.logger,
			sess.ID, req.Project, req.Chapter, "analysis")
	}

	state := agent.NewRunState(req.Project, req.Chapter, paragraphs, indices, bible, dimensions)

	deps := agent.Deps{
		Store:   store,
		Checker: s.checkerFor(client, req.Model),
		Logger:  s.logger,
	}
	if store != nil {
		deps.Searcher = narrative.NewStoreSearcher(store)
	}
	exec := agent.NewExecutor(state, deps)

	loop := &agent.Loop{
		Client:          client,
		Model:           req.Model,
		Temperature:     s.defaults.Temperature,
		MaxTokens:       s.defaults.MaxTokens,
		MaxIterations:   s.defaults.MaxIterations,
		MaxPerParagraph: s.defaults.MaxPerParagraph,
		PauseTimeout:    time.Duration(s.defaults.PauseTimeoutSec) * time.Second,
		Mode:            mode,
		Sessions:        s.sessions,
		Logger:          s.logger,
	}

	ch := make(chan events.Event, 64)
	go func() {
		defer close(ch)
		defer s.sessions.Remove(sess.ID)
		if store != nil {
			defer store.Close()
		}
		loop.Run(ctx, sess, state, exec, func(e events.Event) {
			select {
			case ch <- e:
			case <-ctx.Done():
			}
		})
	}()

	return &Run{SessionID: sess.ID, Events: ch}, nil
}

// Resume unpauses a paused session. updatedText, when non-empty, is a
// full replacement chapter text the run re-segments and applies to
// paragraphs it has not yet visited.
func (s *Service) Resume(sessionID, updatedText string) bool {
	return s.sessions.Resume(sessionID, updatedText)
}

// Cancel cancels a session. A paused run wakes up and terminates.
func (s *Service) Cancel(sessionID string) bool {
	return s.sessions.Cancel(sessionID)
}

// Status reports a session's live status.
func (s *Service) Status(sessionID string) (session.Status, bool) {
	return s.sessions.Status(sessionID)
}

// Sessions exposes the underlying controller.
func (s *Service) Sessions() *session.Controller {
	return s.sessions
}

func (s *Service) clientFor(name string) (providers.LLMClient, error) {
	if name == "" {
		name = s.defaults.LLMProvider
	}
	if name == "" {
		names := s.registry.Names()
		if len(names) == 0 {
			return nil, errors.New("no LLM providers configured")
		}
		name = names[0]
	}
	return s.registry.GetLLM(name)
}

func (s *Service) checkerFor(client providers.LLMClient, model string) *coherence.Checker {
	opts := []coherence.CheckerOption{coherence.WithLogger(s.logger)}
	if model != "" {
		opts = append(opts, coherence.WithModel(model))
	}
	return coherence.NewChecker(client, opts...)
}

// loadBible reads the project's story bible if one is on disk. A missing
// bible is not an error; runs degrade to text-only analysis.
func (s *Service) loadBible(project string) *narrative.Bible {
	path := s.home.BiblePath(project)
	bible, err := narrative.LoadBible(path)
	if err != nil {
		s.logger.Debug("no story bible loaded", "project", project, "path", path, "error", err)
		return nil
	}
	return bible
}

// openStore opens the project's narrative store, imports the bible, and
// saves the chapter paragraphs for cross-chapter retrieval. Failures are
// logged and the run proceeds without a store.
func (s *Service) openStore(ctx context.Context, project string, bible *narrative.Bible, chapter string, paragraphs []string) *narrative.Store {
	if err := s.home.EnsureExists(); err != nil {
		s.logger.Warn("home dir unavailable, running without narrative store", "error", err)
		return nil
	}
	store, err := narrative.OpenStore(s.home.NarrativeDBPath(project))
	if err != nil {
		s.logger.Warn("narrative store unavailable", "project", project, "error", err)
		return nil
	}
	if bible != nil {
		if err := store.ImportBible(ctx, bible); err != nil {
			s.logger.Warn("bible import failed", "project", project, "error", err)
		}
	}
	if err := store.SaveParagraphs(ctx, project, chapter, paragraphs); err != nil {
		s.logger.Warn("failed to save chapter paragraphs", "project", project, "chapter", chapter, "error", err)
	}
	return store
}

// selectParagraphs resolves the requested index subset against the
// segmented chapter. Indices must be in range and are handled in sorted
// chapter order regardless of request order.
func selectParagraphs(all []string, want []int) ([]string, []int, error) {
	if len(want) == 0 {
		return all, nil, nil
	}
	seen := make(map[int]bool, len(want))
	indices := make([]int, 0, len(want))
	for _, i := range want {
		if i < 0 || i >= len(all) {
			return nil, nil, fmt.Errorf("paragraph index %d out of range (chapter has %d paragraphs)", i, len(all))
		}
		if !seen[i] {
			seen[i] = true
			indices = append(indices, i)
		}
	}
	// Runs walk the chapter front to back.
	sort.Ints(indices)
	texts := make([]string, len(indices))
	for n, i := range indices {
		texts[n] = all[i]
	}
	return texts, indices, nil
}

func validDimension(d string) bool {
	for _, v := range narrative.ValidDimensions() {
		if v == d {
			return true
		}
	}
	return false
}
