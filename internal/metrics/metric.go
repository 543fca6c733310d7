// Package metrics provides usage tracking for LLM calls.
package metrics

import (
	"time"

	"github.com/proseforge/redline/internal/providers"
)

// Metric is a single recorded LLM call with full attribution.
type Metric struct {
	ID int64 `json:"id,omitempty"`

	// Attribution (for filtering/aggregation)
	SessionID string `json:"session_id,omitempty"`
	Project   string `json:"project,omitempty"`
	Chapter   string `json:"chapter,omitempty"`
	Purpose   string `json:"purpose,omitempty"` // e.g., "loop", "deep_check"

	// Provider info
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// Tokens
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`

	// Timing
	ExecutionSeconds float64 `json:"execution_seconds,omitempty"`
	TotalSeconds     float64 `json:"total_seconds,omitempty"`
	Attempts         int     `json:"attempts,omitempty"`

	// Status
	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// FromChatResult builds a Metric from one completed LLM call.
func FromChatResult(res *providers.ChatResult, sessionID, project, chapter, purpose string) Metric {
	m := Metric{
		SessionID: sessionID,
		Project:   project,
		Chapter:   chapter,
		Purpose:   purpose,
		CreatedAt: time.Now(),
	}
	if res == nil {
		return m
	}
	m.Provider = res.Provider
	m.Model = res.ModelUsed
	m.PromptTokens = res.PromptTokens
	m.CompletionTokens = res.CompletionTokens
	m.TotalTokens = res.TotalTokens
	m.ExecutionSeconds = res.ExecutionTime.Seconds()
	m.TotalSeconds = res.TotalTime.Seconds()
	m.Attempts = res.Attempts
	m.Success = res.Success
	m.ErrorType = res.ErrorType
	return m
}

// Summary aggregates metrics for a session or the whole store.
type Summary struct {
	Calls            int     `json:"calls"`
	Failures         int     `json:"failures"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	TotalSeconds     float64 `json:"total_seconds"`
}
