package agent

import (
	"log/slog"
	"testing"
	"time"

	"github.com/proseforge/redline/internal/events"
	"github.com/proseforge/redline/internal/providers"
	"github.com/proseforge/redline/internal/session"
)

// turn builds a response in the two-region protocol.
func turn(tool, params string) string {
	if params == "" {
		params = "{}"
	}
	return "THINKING:\nworking on it\n\nACTION:\n" +
		`{"tool": "` + tool + `", "parameters": ` + params + `, "reason": "test"}`
}

type collector struct {
	names  []events.Name
	events []events.Event
}

func (c *collector) emit(e events.Event) {
	c.names = append(c.names, e.Name)
	c.events = append(c.events, e)
}

func (c *collector) count(name events.Name) int {
	n := 0
	for _, got := range c.names {
		if got == name {
			n++
		}
	}
	return n
}

func newTestLoop(mock *providers.MockClient, ctrl *session.Controller, mode Mode) *Loop {
	return &Loop{
		Client:        mock,
		MaxIterations: 30,
		PauseTimeout:  2 * time.Second,
		Mode:          mode,
		Sessions:      ctrl,
		Logger:        slog.Default(),
	}
}

func runSetup(t *testing.T, ctrl *session.Controller) (*session.Session, *RunState, *Executor) {
	t.Helper()
	state := testState()
	sess := ctrl.Create(state.Project, state.Chapter, len(state.Paragraphs))
	return sess, state, NewExecutor(state, Deps{})
}

func TestLoopAutoMode(t *testing.T) {
	ctrl := session.NewController(nil)
	mock := providers.NewMockClient()
	mock.Enqueue(
		turn("analyze_paragraph", ""),
		turn("record_suggestion", `{"original_text": "dark water", "suggested_text": "black water", "reason": "established color", "severity": "low"}`),
		turn("finish_paragraph", ""),
		turn("quick_check", ""),
		turn("finish_paragraph", ""),
		turn("complete_analysis", `{"summary": "one color fix"}`),
	)

	sess, state, exec := runSetup(t, ctrl)
	var c collector
	newTestLoop(mock, ctrl, ModeAuto).Run(t.Context(), sess, state, exec, c.emit)

	if c.names[0] != events.WorkflowStart {
		t.Errorf("first event = %s", c.names[0])
	}
	last := c.names[len(c.names)-1]
	if last != events.WorkflowComplete {
		t.Errorf("last event = %s", last)
	}
	if got := c.count(events.WorkflowComplete); got != 1 {
		t.Errorf("workflow_complete emitted %d times", got)
	}
	if got := c.count(events.Suggestion); got != 1 {
		t.Errorf("suggestion emitted %d times", got)
	}
	if got := c.count(events.ParagraphComplete); got != 2 {
		t.Errorf("paragraph_complete emitted %d times, want 2", got)
	}
	if got := c.count(events.WorkflowPaused); got != 0 {
		t.Errorf("auto mode paused %d times", got)
	}
	if !state.Done || state.Summary != "one color fix" {
		t.Errorf("state done=%v summary=%q", state.Done, state.Summary)
	}

	// The suggestion event precedes its paragraph_complete.
	sugAt, parAt := -1, -1
	for i, n := range c.names {
		if n == events.Suggestion && sugAt < 0 {
			sugAt = i
		}
		if n == events.ParagraphComplete && parAt < 0 {
			parAt = i
		}
	}
	if sugAt < 0 || parAt < 0 || sugAt > parAt {
		t.Errorf("suggestion at %d, paragraph_complete at %d", sugAt, parAt)
	}
}

func TestLoopReviewPauseResume(t *testing.T) {
	ctrl := session.NewController(nil)
	mock := providers.NewMockClient()
	mock.Enqueue(
		turn("record_suggestion", `{"original_text": "dark water", "suggested_text": "black water", "reason": "r"}`),
		turn("finish_paragraph", ""),
		turn("finish_paragraph", ""),
		turn("complete_analysis", `{"summary": "done"}`),
	)

	sess, state, exec := runSetup(t, ctrl)
	go func() {
		// Resume once the run reaches its pause point.
		for i := 0; i < 200; i++ {
			if st, ok := ctrl.Status(sess.ID); ok && st.Paused {
				ctrl.Resume(sess.ID, "")
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	var c collector
	newTestLoop(mock, ctrl, ModeReview).Run(t.Context(), sess, state, exec, c.emit)

	if got := c.count(events.WorkflowPaused); got != 1 {
		t.Fatalf("workflow_paused emitted %d times", got)
	}
	if got := c.count(events.WorkflowResumed); got != 1 {
		t.Fatalf("workflow_resumed emitted %d times", got)
	}
	if c.names[len(c.names)-1] != events.WorkflowComplete {
		t.Errorf("last event = %s", c.names[len(c.names)-1])
	}

	// suggestion < paused < resumed, strictly.
	order := map[events.Name]int{}
	for i, n := range c.names {
		if _, seen := order[n]; !seen {
			order[n] = i
		}
	}
	if !(order[events.Suggestion] < order[events.WorkflowPaused] &&
		order[events.WorkflowPaused] < order[events.WorkflowResumed]) {
		t.Errorf("event order: %v", c.names)
	}
}

func TestLoopCancelWhilePaused(t *testing.T) {
	ctrl := session.NewController(nil)
	mock := providers.NewMockClient()
	mock.Enqueue(
		turn("record_suggestion", `{"original_text": "dark water", "suggested_text": "x", "reason": "r"}`),
	)

	sess, state, exec := runSetup(t, ctrl)
	go func() {
		for i := 0; i < 200; i++ {
			if st, ok := ctrl.Status(sess.ID); ok && st.Paused {
				ctrl.Cancel(sess.ID)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	var c collector
	newTestLoop(mock, ctrl, ModeReview).Run(t.Context(), sess, state, exec, c.emit)

	if got := c.count(events.Error); got == 0 {
		t.Error("expected an error event for the cancelled pause")
	}
	if got := c.count(events.WorkflowResumed); got != 0 {
		t.Errorf("workflow_resumed emitted %d times after cancel", got)
	}
	if got := c.count(events.WorkflowComplete); got != 1 {
		t.Errorf("workflow_complete emitted %d times", got)
	}
	if c.names[len(c.names)-1] != events.WorkflowComplete {
		t.Errorf("last event = %s", c.names[len(c.names)-1])
	}
}

func TestLoopPauseTimeout(t *testing.T) {
	ctrl := session.NewController(nil)
	mock := providers.NewMockClient()
	mock.Enqueue(
		turn("record_suggestion", `{"original_text": "dark water", "suggested_text": "x", "reason": "r"}`),
	)

	sess, state, exec := runSetup(t, ctrl)
	loop := newTestLoop(mock, ctrl, ModeReview)
	loop.PauseTimeout = 50 * time.Millisecond

	var c collector
	loop.Run(t.Context(), sess, state, exec, c.emit)

	if got := c.count(events.Error); got == 0 {
		t.Error("expected an error event for the pause timeout")
	}
	if !sess.Cancelled() {
		t.Error("timed-out pause must leave the session cancelled")
	}
	if c.names[len(c.names)-1] != events.WorkflowComplete {
		t.Errorf("last event = %s", c.names[len(c.names)-1])
	}
}

func TestLoopCorrectiveInstruction(t *testing.T) {
	ctrl := session.NewController(nil)
	mock := providers.NewMockClient()
	mock.Enqueue(
		"I will just describe what I would do without any action block.",
		turn("finish_paragraph", ""),
		turn("finish_paragraph", ""),
		turn("complete_analysis", `{"summary": "ok"}`),
	)

	sess, state, exec := runSetup(t, ctrl)
	var c collector
	newTestLoop(mock, ctrl, ModeAuto).Run(t.Context(), sess, state, exec, c.emit)

	if !state.Done {
		t.Fatal("run did not complete")
	}
	// The malformed turn must produce a corrective user message.
	corrected := false
	for _, req := range mock.Requests() {
		for _, m := range req.Messages {
			if m.Role == "user" && m.Content == correctiveInstruction {
				corrected = true
			}
		}
	}
	if !corrected {
		t.Error("no corrective instruction sent after malformed response")
	}
}

func TestLoopStuckCapForcesAdvance(t *testing.T) {
	ctrl := session.NewController(nil)
	mock := providers.NewMockClient()
	// Endless quick checks: never advances, never completes.
	mock.ResponseText = turn("quick_check", "")

	sess, state, exec := runSetup(t, ctrl)
	loop := newTestLoop(mock, ctrl, ModeAuto)
	loop.MaxPerParagraph = 3
	loop.MaxIterations = 40

	var c collector
	loop.Run(t.Context(), sess, state, exec, c.emit)

	if !state.Done {
		t.Error("run did not finish after the stuck cap closed the final paragraph")
	}
	// Two paragraphs at three turns each; anything near MaxIterations
	// means the cap deferred to an uncooperative model instead of closing
	// the run.
	if n := mock.RequestCount(); n > 2*loop.MaxPerParagraph+1 {
		t.Errorf("made %d LLM calls, want at most %d", n, 2*loop.MaxPerParagraph+1)
	}
	if got := c.count(events.Error); got != 0 {
		t.Errorf("error emitted %d times, want none", got)
	}
	if got := c.count(events.WorkflowComplete); got != 1 {
		t.Errorf("workflow_complete emitted %d times", got)
	}
	if last := c.names[len(c.names)-1]; last != events.WorkflowComplete {
		t.Errorf("last event = %s, want workflow_complete", last)
	}
	if state.Summary == "" {
		t.Error("forced completion left an empty summary")
	}
}

func TestLoopEmptyParagraphs(t *testing.T) {
	ctrl := session.NewController(nil)
	mock := providers.NewMockClient()
	state := NewRunState("p", "c", nil, nil, nil, nil)
	sess := ctrl.Create("p", "c", 0)

	var c collector
	newTestLoop(mock, ctrl, ModeAuto).Run(t.Context(), sess, state, exec0(state), c.emit)

	if len(c.names) != 2 || c.names[0] != events.WorkflowStart || c.names[1] != events.WorkflowComplete {
		t.Errorf("events = %v", c.names)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("made %d LLM calls for an empty run", mock.RequestCount())
	}
}

func exec0(state *RunState) *Executor {
	return NewExecutor(state, Deps{})
}

func TestLoopResumeWithUpdatedText(t *testing.T) {
	ctrl := session.NewController(nil)
	mock := providers.NewMockClient()
	mock.Enqueue(
		turn("record_suggestion", `{"original_text": "dark water", "suggested_text": "black water", "reason": "r"}`),
		turn("finish_paragraph", ""),
		turn("finish_paragraph", ""),
		turn("complete_analysis", `{"summary": "done"}`),
	)

	sess, state, exec := runSetup(t, ctrl)
	updated := "Mara trimmed the wick and watched the dark water.\n\nThe rewritten second paragraph arrives with the resume call and should be analyzed instead."
	go func() {
		for i := 0; i < 200; i++ {
			if st, ok := ctrl.Status(sess.ID); ok && st.Paused {
				ctrl.Resume(sess.ID, updated)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	var c collector
	newTestLoop(mock, ctrl, ModeReview).Run(t.Context(), sess, state, exec, c.emit)

	if !state.Done {
		t.Fatal("run did not complete")
	}
	if got := state.Paragraphs[1]; got == "The next morning, Tomas knocked twice and let himself in." {
		t.Error("upcoming paragraph was not replaced by the resume text")
	}
	// The visited/current paragraph keeps its original text.
	if state.Paragraphs[0] != "Mara trimmed the wick and watched the dark water." {
		t.Errorf("paragraph 0 changed: %q", state.Paragraphs[0])
	}
}
