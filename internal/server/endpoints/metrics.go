package endpoints

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/proseforge/redline/internal/api"
	"github.com/proseforge/redline/internal/metrics"
	"github.com/proseforge/redline/internal/svcctx"
)

// MetricsSummaryResponse aggregates LLM call metrics.
type MetricsSummaryResponse struct {
	SessionID string          `json:"session_id,omitempty"`
	Summary   metrics.Summary `json:"summary"`
}

// MetricsListResponse lists recent LLM calls.
type MetricsListResponse struct {
	Calls []metrics.Metric `json:"calls"`
	Count int              `json:"count"`
}

// MetricsSummaryEndpoint handles GET /api/metrics/summary.
type MetricsSummaryEndpoint struct{}

func (e *MetricsSummaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics/summary", e.handler
}

func (e *MetricsSummaryEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Summarize LLM usage
//	@Description	Aggregate LLM call counts, tokens, and time, optionally for one session
//	@Tags			metrics
//	@Produce		json
//	@Param			session	query		string	false	"Session ID"
//	@Success		200	{object}	MetricsSummaryResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/metrics/summary [get]
func (e *MetricsSummaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	recorder := svcctx.RecorderFrom(r.Context())
	if recorder == nil {
		writeError(w, http.StatusInternalServerError, "metrics recorder not available")
		return
	}

	sessionID := r.URL.Query().Get("session")
	summary, err := recorder.SessionSummary(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, MetricsSummaryResponse{SessionID: sessionID, Summary: summary})
}

func (e *MetricsSummaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Summarize LLM usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/metrics/summary"
			if sessionID != "" {
				path += "?session=" + url.QueryEscape(sessionID)
			}
			var resp MetricsSummaryResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Limit to one session")
	return cmd
}

// ListMetricsEndpoint handles GET /api/metrics.
type ListMetricsEndpoint struct{}

func (e *ListMetricsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics", e.handler
}

func (e *ListMetricsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List recent LLM calls
//	@Description	Get recent LLM calls, newest first
//	@Tags			metrics
//	@Produce		json
//	@Param			limit	query		int	false	"Max calls to return (default 50)"
//	@Success		200	{object}	MetricsListResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/metrics [get]
func (e *ListMetricsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	recorder := svcctx.RecorderFrom(r.Context())
	if recorder == nil {
		writeError(w, http.StatusInternalServerError, "metrics recorder not available")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	calls, err := recorder.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, MetricsListResponse{Calls: calls, Count: len(calls)})
}

func (e *ListMetricsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "calls",
		Short: "List recent LLM calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp MetricsListResponse
			if err := client.Get(cmd.Context(), "/api/metrics?limit="+strconv.Itoa(limit), &resp); err != nil {
				return err
			}
			return api.Output(resp.Calls)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Max calls to return")
	return cmd
}
