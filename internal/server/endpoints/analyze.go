package endpoints

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/proseforge/redline/internal/events"
	"github.com/proseforge/redline/internal/svcctx"
	"github.com/proseforge/redline/internal/workflow"
)

// AnalyzeEndpoint handles POST /api/analyze.
//
// The response is a server-sent event stream: each workflow event goes
// out as "event: <name>" followed by "data: <json>". The stream stays
// open until the run emits workflow_complete.
type AnalyzeEndpoint struct{}

func (e *AnalyzeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/analyze", e.handler
}

func (e *AnalyzeEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Analyze a chapter
//	@Description	Run continuity analysis over a chapter, streaming events as SSE
//	@Tags			analysis
//	@Accept			json
//	@Produce		text/event-stream
//	@Param			body	body	workflow.AnalyzeRequest	true	"Analysis request"
//	@Success		200	{string}	string	"SSE event stream"
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/analyze [post]
func (e *AnalyzeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req workflow.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	svc := svcctx.WorkflowFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusInternalServerError, "workflow service not available")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	run, err := svc.Analyze(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range run.Events {
		fmt.Fprintf(w, "event: %s\n", ev.Name)
		fmt.Fprintf(w, "data: %s\n\n", ev.MarshalPayload())
		flusher.Flush()
	}
}

func (e *AnalyzeEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		project    string
		chapter    string
		textFile   string
		mode       string
		provider   string
		model      string
		paragraphs []int
		dimensions []string
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run continuity analysis over a chapter",
		Long: `Analyze streams workflow events from the server as they happen.

Each event prints as one JSON line, so the output can be piped into jq
or collected into a log.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(textFile)
			if err != nil {
				return fmt.Errorf("failed to read chapter text: %w", err)
			}
			req := workflow.AnalyzeRequest{
				Project:    project,
				Chapter:    chapter,
				Text:       string(text),
				Paragraphs: paragraphs,
				Dimensions: dimensions,
				Mode:       mode,
				Provider:   provider,
				Model:      model,
			}
			return streamAnalyze(cmd, getServerURL(), req)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project name")
	cmd.Flags().StringVar(&chapter, "chapter", "", "Chapter identifier")
	cmd.Flags().StringVar(&textFile, "file", "", "Path to the chapter text file")
	cmd.Flags().StringVar(&mode, "mode", "", "Interaction mode: auto, review, or plan")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider override")
	cmd.Flags().StringVar(&model, "model", "", "Model override")
	cmd.Flags().IntSliceVar(&paragraphs, "paragraphs", nil, "Paragraph indices to analyze (default: all)")
	cmd.Flags().StringSliceVar(&dimensions, "dimensions", nil, "Dimensions to check (default: all)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("chapter")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// streamAnalyze posts the request and relays the SSE stream as JSON
// lines on stdout.
func streamAnalyze(cmd *cobra.Command, serverURL string, req workflow.AnalyzeRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, serverURL+"/api/analyze", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("server error (%d)", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var name string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			out, err := json.Marshal(events.Event{Name: events.Name(name), Payload: json.RawMessage(data)})
			if err != nil {
				continue
			}
			cmd.Println(string(out))
		}
	}
	return scanner.Err()
}
