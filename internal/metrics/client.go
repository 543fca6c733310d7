package metrics

import (
	"context"
	"log/slog"

	"github.com/proseforge/redline/internal/providers"
)

// RecordingClient decorates an LLMClient, recording one metric per call.
// Recording is best effort: a failure to record never fails the call.
type RecordingClient struct {
	inner    providers.LLMClient
	recorder *Recorder
	logger   *slog.Logger

	sessionID string
	project   string
	chapter   string
	purpose   string
}

// NewRecordingClient wraps inner so every Chat call is recorded with the
// given attribution.
func NewRecordingClient(inner providers.LLMClient, recorder *Recorder, logger *slog.Logger, sessionID, project, chapter, purpose string) *RecordingClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingClient{
		inner:     inner,
		recorder:  recorder,
		logger:    logger,
		sessionID: sessionID,
		project:   project,
		chapter:   chapter,
		purpose:   purpose,
	}
}

// Name returns the wrapped client's identifier.
func (c *RecordingClient) Name() string {
	return c.inner.Name()
}

// Chat forwards to the wrapped client and records the outcome.
func (c *RecordingClient) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
	res, err := c.inner.Chat(ctx, req)

	if c.recorder != nil && res != nil {
		m := FromChatResult(res, c.sessionID, c.project, c.chapter, c.purpose)
		if recErr := c.recorder.Record(ctx, m); recErr != nil {
			c.logger.Warn("failed to record LLM call metric", "error", recErr)
		}
	}
	return res, err
}
