// Package events defines the stream event vocabulary emitted during a
// chapter analysis run. Events are wire-friendly named payloads suitable
// for Server-Sent Events or JSON-line output; they are produced strictly
// in order and never reordered or buffered by the emitter.
package events

import "encoding/json"

// Name identifies a stream event type.
type Name string

const (
	WorkflowStart     Name = "workflow_start"
	ParagraphStart    Name = "paragraph_start"
	Thinking          Name = "thinking"
	Action            Name = "action"
	Observation       Name = "observation"
	Suggestion        Name = "suggestion"
	ParagraphComplete Name = "paragraph_complete"
	WorkflowPaused    Name = "workflow_paused"
	WorkflowResumed   Name = "workflow_resumed"
	WorkflowComplete  Name = "workflow_complete"
	Error             Name = "error"
)

// Event is one named payload in the analysis stream.
type Event struct {
	Name    Name `json:"event"`
	Payload any  `json:"data"`
}

// MarshalPayload returns the payload as JSON, falling back to an empty
// object so a marshal failure never breaks the stream.
func (e Event) MarshalPayload() []byte {
	b, err := json.Marshal(e.Payload)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// WorkflowStartPayload opens the stream.
type WorkflowStartPayload struct {
	SessionID       string   `json:"session_id"`
	TotalParagraphs int      `json:"total_paragraphs"`
	Dimensions      []string `json:"dimensions"`
	Mode            string   `json:"mode"`
}

// ParagraphStartPayload announces the cursor moving to a new paragraph.
type ParagraphStartPayload struct {
	Index       int    `json:"index"`
	TextPreview string `json:"text_preview"`
}

// ThinkingPayload carries the model's free-text reasoning for one step.
type ThinkingPayload struct {
	ParagraphIndex int    `json:"paragraph_index"`
	Content        string `json:"content"`
	Step           int    `json:"step"`
}

// ActionPayload announces a tool about to be executed.
type ActionPayload struct {
	ParagraphIndex int    `json:"paragraph_index"`
	Action         string `json:"action"`
	Description    string `json:"description"`
}

// ObservationPayload carries a tool result back to the client.
type ObservationPayload struct {
	ParagraphIndex int    `json:"paragraph_index"`
	Action         string `json:"action"`
	Result         string `json:"result"`
	Success        bool   `json:"success"`
}

// SuggestionPayload is one proposed text replacement.
type SuggestionPayload struct {
	ParagraphIndex int    `json:"paragraph_index"`
	OriginalText   string `json:"original_text"`
	SuggestedText  string `json:"suggested_text"`
	Reason         string `json:"reason"`
	Category       string `json:"category"`
	Priority       int    `json:"priority"`
}

// ParagraphCompletePayload closes out one paragraph.
type ParagraphCompletePayload struct {
	Index           int `json:"index"`
	SuggestionCount int `json:"suggestion_count"`
}

// WorkflowPausedPayload signals the run is waiting for the client.
type WorkflowPausedPayload struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// WorkflowResumedPayload signals the run picked back up.
type WorkflowResumedPayload struct {
	SessionID string `json:"session_id"`
}

// WorkflowCompletePayload is the single terminal event of every stream.
type WorkflowCompletePayload struct {
	TotalSuggestions   int    `json:"total_suggestions"`
	ParagraphsAnalyzed int    `json:"paragraphs_analyzed"`
	Summary            string `json:"summary"`
}

// ErrorPayload reports a recoverable or fatal problem. Whether the stream
// continues is decided by whether a workflow_complete follows.
type ErrorPayload struct {
	Message string `json:"message"`
}

func New(name Name, payload any) Event {
	return Event{Name: name, Payload: payload}
}
