package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/proseforge/redline/internal/api"
	"github.com/proseforge/redline/internal/session"
	"github.com/proseforge/redline/internal/svcctx"
)

// SessionStatusResponse wraps a session snapshot.
type SessionStatusResponse struct {
	Session session.Status `json:"session"`
}

// SessionListResponse lists live sessions.
type SessionListResponse struct {
	Sessions []session.Status `json:"sessions"`
	Count    int              `json:"count"`
}

// ResumeSessionRequest is the body for resuming a paused session.
type ResumeSessionRequest struct {
	// UpdatedText optionally carries a full replacement chapter text.
	// The run applies it to paragraphs it has not yet visited.
	UpdatedText string `json:"updated_text,omitempty"`
}

// SessionActionResponse reports the outcome of a resume or cancel call.
type SessionActionResponse struct {
	SessionID string `json:"session_id"`
	OK        bool   `json:"ok"`
}

// ListSessionsEndpoint handles GET /api/sessions.
type ListSessionsEndpoint struct{}

func (e *ListSessionsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/sessions", e.handler
}

func (e *ListSessionsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List live sessions
//	@Description	Get status of all live analysis sessions
//	@Tags			sessions
//	@Produce		json
//	@Success		200	{object}	SessionListResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/sessions [get]
func (e *ListSessionsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusInternalServerError, "session controller not available")
		return
	}
	statuses := sessions.Statuses()
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: statuses, Count: len(statuses)})
}

func (e *ListSessionsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List live analysis sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SessionListResponse
			if err := client.Get(cmd.Context(), "/api/sessions", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SessionStatusEndpoint handles GET /api/sessions/{id}.
type SessionStatusEndpoint struct{}

func (e *SessionStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/sessions/{id}", e.handler
}

func (e *SessionStatusEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get session status
//	@Description	Get the live status of one analysis session
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	SessionStatusResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/sessions/{id} [get]
func (e *SessionStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sessions := svcctx.SessionsFrom(r.Context())
	if sessions == nil {
		writeError(w, http.StatusInternalServerError, "session controller not available")
		return
	}
	status, ok := sessions.Status(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, SessionStatusResponse{Session: status})
}

func (e *SessionStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "session <id>",
		Short: "Get the status of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SessionStatusResponse
			if err := client.Get(cmd.Context(), "/api/sessions/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp.Session)
		},
	}
}

// ResumeSessionEndpoint handles POST /api/sessions/{id}/resume.
type ResumeSessionEndpoint struct{}

func (e *ResumeSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sessions/{id}/resume", e.handler
}

func (e *ResumeSessionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Resume a paused session
//	@Description	Resume a paused analysis session, optionally with updated chapter text
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Session ID"
//	@Param			body	body		ResumeSessionRequest	false	"Optional updated text"
//	@Success		200		{object}	SessionActionResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/sessions/{id}/resume [post]
func (e *ResumeSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ResumeSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	svc := svcctx.WorkflowFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusInternalServerError, "workflow service not available")
		return
	}

	id := r.PathValue("id")
	if !svc.Resume(id, req.UpdatedText) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, SessionActionResponse{SessionID: id, OK: true})
}

func (e *ResumeSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	var textFile string
	cmd := &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Resume a paused session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req ResumeSessionRequest
			if textFile != "" {
				text, err := os.ReadFile(textFile)
				if err != nil {
					return fmt.Errorf("failed to read updated text: %w", err)
				}
				req.UpdatedText = string(text)
			}
			client := api.NewClient(getServerURL())
			var resp SessionActionResponse
			if err := client.Post(cmd.Context(), "/api/sessions/"+args[0]+"/resume", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&textFile, "file", "", "Path to updated chapter text (optional)")
	return cmd
}

// CancelSessionEndpoint handles POST /api/sessions/{id}/cancel.
type CancelSessionEndpoint struct{}

func (e *CancelSessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sessions/{id}/cancel", e.handler
}

func (e *CancelSessionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Cancel a session
//	@Description	Cancel a running or paused analysis session
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	SessionActionResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/sessions/{id}/cancel [post]
func (e *CancelSessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.WorkflowFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusInternalServerError, "workflow service not available")
		return
	}

	id := r.PathValue("id")
	if !svc.Cancel(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, SessionActionResponse{SessionID: id, OK: true})
}

func (e *CancelSessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <session-id>",
		Short: "Cancel a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SessionActionResponse
			if err := client.Post(cmd.Context(), "/api/sessions/"+args[0]+"/cancel", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
