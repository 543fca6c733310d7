package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/proseforge/redline/internal/events"
	"github.com/proseforge/redline/internal/providers"
	"github.com/proseforge/redline/internal/segment"
	"github.com/proseforge/redline/internal/session"
	"github.com/proseforge/redline/internal/tools"
)

// Mode selects how the run interacts with the client.
type Mode string

const (
	// ModeAuto runs to completion without pausing.
	ModeAuto Mode = "auto"
	// ModeReview pauses after every recorded suggestion until resumed.
	ModeReview Mode = "review"
	// ModePlan runs to completion unpaused; the caller applies the
	// collected suggestions selectively afterward.
	ModePlan Mode = "plan"
)

// ValidMode reports whether m is a known mode.
func ValidMode(m Mode) bool {
	return m == ModeAuto || m == ModeReview || m == ModePlan
}

// Emitter receives events strictly in production order.
type Emitter func(events.Event)

// Loop is the per-run state machine configuration.
type Loop struct {
	Client      providers.LLMClient
	Model       string
	Temperature float64
	MaxTokens   int

	// MaxIterations caps LLM turns for the whole run; MaxPerParagraph is
	// the stuck cap that force-advances the cursor.
	MaxIterations   int
	MaxPerParagraph int

	// PauseTimeout bounds every blocking wait at a pause point. On
	// timeout the run treats itself as cancelled.
	PauseTimeout time.Duration

	Mode     Mode
	Sessions *session.Controller
	Logger   *slog.Logger
}

const (
	defaultMaxIterations   = 50
	defaultMaxPerParagraph = 8
	defaultPauseTimeout    = 5 * time.Minute
)

func (l *Loop) defaults() {
	if l.MaxIterations <= 0 {
		l.MaxIterations = defaultMaxIterations
	}
	if l.MaxPerParagraph <= 0 {
		l.MaxPerParagraph = defaultMaxPerParagraph
	}
	if l.PauseTimeout <= 0 {
		l.PauseTimeout = defaultPauseTimeout
	}
	if !ValidMode(l.Mode) {
		l.Mode = ModeAuto
	}
	if l.Logger == nil {
		l.Logger = slog.Default()
	}
}

// Run drives one analysis run to completion. It emits events in strict
// production order and always ends the stream with exactly one
// workflow_complete, whatever path the run takes out.
func (l *Loop) Run(ctx context.Context, sess *session.Session, state *RunState, exec *Executor, emit Emitter) {
	l.defaults()

	emit(events.New(events.WorkflowStart, events.WorkflowStartPayload{
		SessionID:       sess.ID,
		TotalParagraphs: len(state.Paragraphs),
		Dimensions:      state.Dimensions,
		Mode:            string(l.Mode),
	}))
	defer func() {
		emit(events.New(events.WorkflowComplete, events.WorkflowCompletePayload{
			TotalSuggestions:   len(state.Suggestions),
			ParagraphsAnalyzed: state.ParagraphsAnalyzed(),
			Summary:            state.Summary,
		}))
	}()

	if len(state.Paragraphs) == 0 {
		state.Done = true
		state.Summary = "nothing to analyze"
		return
	}

	history := []providers.Message{
		{Role: "system", Content: systemPrompt(state)},
		{Role: "user", Content: openingMessage(state)},
	}
	l.emitParagraphStart(state, emit)
	lastCursor := state.Current
	stuck := 0
	terminate := false

	for iter := 0; iter < l.MaxIterations && !state.Done; iter++ {
		if err := ctx.Err(); err != nil {
			emit(events.New(events.Error, events.ErrorPayload{Message: "run aborted: " + err.Error()}))
			return
		}
		if sess.Cancelled() {
			emit(events.New(events.Error, events.ErrorPayload{Message: "session cancelled"}))
			return
		}

		l.Sessions.Progress(sess.ID, state.Current)

		func() {
			defer func() {
				if r := recover(); r != nil {
					l.Logger.Error("iteration panicked", "session_id", sess.ID, "panic", r)
					emit(events.New(events.Error, events.ErrorPayload{
						Message: fmt.Sprintf("internal error, continuing: %v", r),
					}))
					history = append(history, providers.Message{
						Role:    "user",
						Content: "The previous step failed internally. Continue from the current paragraph.",
					})
					stuck++
				}
			}()
			history, stuck, terminate = l.iterate(ctx, iter, sess, state, exec, emit, history, stuck)
		}()

		if terminate {
			return
		}
		if state.Done {
			// Completion without an explicit finish of the paragraph the
			// cursor sits on still closes it out.
			if state.Current == lastCursor && state.Current < len(state.Paragraphs) {
				l.emitParagraphComplete(state, state.Current, emit)
			}
			break
		}

		// Paragraph boundary bookkeeping.
		if state.Current != lastCursor {
			l.emitParagraphComplete(state, lastCursor, emit)
			stuck = 0
			lastCursor = state.Current
			if !state.Done {
				l.emitParagraphStart(state, emit)
				history = append(history, providers.Message{Role: "user", Content: paragraphMessage(state)})
			}
			continue
		}

		// Stuck cap: force-advance, or finish the run when no
		// paragraphs remain.
		if stuck >= l.MaxPerParagraph && !state.Done {
			l.Logger.Warn("paragraph stuck cap hit, forcing advance",
				"session_id", sess.ID, "paragraph", state.CurrentIndex(), "stuck", stuck)
			l.emitParagraphComplete(state, state.Current, emit)
			if state.Advance() {
				history = append(history, providers.Message{
					Role: "user",
					Content: fmt.Sprintf("Step limit reached for the previous paragraph; it was closed automatically. %s",
						paragraphMessage(state)),
				})
				l.emitParagraphStart(state, emit)
			} else {
				state.Done = true
				if state.Summary == "" {
					state.Summary = "analysis closed at the step limit on the final paragraph"
				}
				break
			}
			stuck = 0
			lastCursor = state.Current
		}
	}

	if !state.Done {
		emit(events.New(events.Error, events.ErrorPayload{
			Message: fmt.Sprintf("iteration budget (%d) exhausted before completion", l.MaxIterations),
		}))
		if state.Summary == "" {
			state.Summary = "run stopped at the iteration budget"
		}
	}
}

// iterate performs one LLM turn: call, parse, execute, react. It returns
// the updated history, the stuck counter, and whether the run must
// terminate (pause wait ended in cancellation or timeout).
func (l *Loop) iterate(ctx context.Context, iter int, sess *session.Session, state *RunState, exec *Executor, emit Emitter, history []providers.Message, stuck int) ([]providers.Message, int, bool) {
	res, err := l.Client.Chat(ctx, &providers.ChatRequest{
		Messages:    history,
		Model:       l.Model,
		Temperature: l.Temperature,
		MaxTokens:   l.MaxTokens,
	})
	if err != nil || !res.Success {
		msg := "completion call failed"
		if err != nil {
			msg += ": " + err.Error()
		} else if res.ErrorMessage != "" {
			msg += ": " + res.ErrorMessage
		}
		l.Logger.Warn("completion call failed", "session_id", sess.ID, "iteration", iter, "error", msg)
		emit(events.New(events.Error, events.ErrorPayload{Message: msg}))
		history = append(history, providers.Message{
			Role:    "user",
			Content: "The last completion attempt failed. Continue from the current paragraph.",
		})
		return history, stuck + 1, false
	}

	parsed, parseErr := Parse(res.Content)
	if parsed.Thinking != "" {
		emit(events.New(events.Thinking, events.ThinkingPayload{
			ParagraphIndex: state.CurrentIndex(),
			Content:        parsed.Thinking,
			Step:           iter,
		}))
	}
	history = append(history, providers.Message{Role: "assistant", Content: res.Content})

	if parseErr != nil || parsed.Call == nil {
		history = append(history, providers.Message{Role: "user", Content: correctiveInstruction})
		return history, stuck + 1, false
	}
	call := parsed.Call

	emit(events.New(events.Action, events.ActionPayload{
		ParagraphIndex: state.CurrentIndex(),
		Action:         string(call.Name),
		Description:    call.Reason,
	}))

	result := exec.Execute(ctx, call)
	history = append(history, providers.Message{Role: "user", Content: "Tool result: " + result.History()})

	emit(events.New(events.Observation, events.ObservationPayload{
		ParagraphIndex: state.CurrentIndex(),
		Action:         string(call.Name),
		Result:         resultPreview(result),
		Success:        result.Success,
	}))

	switch call.Name {
	case tools.RecordSuggestion:
		if result.Success {
			sug := state.Suggestions[len(state.Suggestions)-1]
			emit(events.New(events.Suggestion, events.SuggestionPayload{
				ParagraphIndex: sug.ParagraphIndex,
				OriginalText:   sug.Original,
				SuggestedText:  sug.Suggested,
				Reason:         sug.Reason,
				Category:       sug.Category,
				Priority:       sug.Priority,
			}))
			if l.Mode == ModeReview {
				if !l.pauseAndWait(sess, state, emit, "suggestion recorded: accept, edit, or resume to continue") {
					return history, stuck, true
				}
			}
		}
	case tools.CompleteAnalysis:
		// state.Done is set by the handler; nothing else to do.
	}

	return history, stuck + 1, false
}

// pauseAndWait parks the run at a confirmation point. It returns false
// when the wait ended in cancellation or timeout; the caller terminates
// the run. A timeout is treated as cancellation, never a silent resume.
func (l *Loop) pauseAndWait(sess *session.Session, state *RunState, emit Emitter, message string) bool {
	l.Sessions.Pause(sess.ID)
	emit(events.New(events.WorkflowPaused, events.WorkflowPausedPayload{
		SessionID: sess.ID,
		Message:   message,
	}))

	if !l.Sessions.WaitIfPaused(sess.ID, l.PauseTimeout) {
		if sess.Cancelled() {
			emit(events.New(events.Error, events.ErrorPayload{Message: "session cancelled while paused"}))
		} else {
			l.Sessions.Cancel(sess.ID)
			emit(events.New(events.Error, events.ErrorPayload{
				Message: fmt.Sprintf("pause wait timed out after %s; run cancelled", l.PauseTimeout),
			}))
		}
		return false
	}

	emit(events.New(events.WorkflowResumed, events.WorkflowResumedPayload{SessionID: sess.ID}))

	// The client may have sent a full replacement chapter with the
	// resume; swap it into the paragraphs we have not reached yet.
	if text, ok := sess.TakePendingText(); ok {
		segs := segment.Split(text, segment.DefaultOptions())
		replaced := state.ApplyUpdatedText(segs)
		l.Logger.Info("updated text applied on resume",
			"session_id", sess.ID, "paragraphs_replaced", replaced)
	}
	return true
}

func (l *Loop) emitParagraphStart(state *RunState, emit Emitter) {
	text, ok := state.CurrentParagraph()
	if !ok {
		return
	}
	emit(events.New(events.ParagraphStart, events.ParagraphStartPayload{
		Index:       state.CurrentIndex(),
		TextPreview: preview(text, 120),
	}))
}

func (l *Loop) emitParagraphComplete(state *RunState, pos int, emit Emitter) {
	if pos < 0 || pos >= len(state.Indices) {
		return
	}
	idx := state.Indices[pos]
	emit(events.New(events.ParagraphComplete, events.ParagraphCompletePayload{
		Index:           idx,
		SuggestionCount: state.SuggestionCountFor(idx),
	}))
}

func resultPreview(r tools.Result) string {
	if !r.Success {
		return r.Error
	}
	return preview(string(r.Payload), 200)
}
