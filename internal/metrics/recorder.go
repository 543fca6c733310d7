package metrics

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Recorder appends metrics to an embedded sqlite database and answers
// aggregate queries over them.
type Recorder struct {
	db *sql.DB
}

// OpenRecorder opens (or creates) the metrics database at path.
func OpenRecorder(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metrics db: %w", err)
	}
	db.SetMaxOpenConns(1)

	r := &Recorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate metrics db: %w", err)
	}
	return r, nil
}

// NewRecorderWithDB wraps an existing connection, running migrations.
func NewRecorderWithDB(db *sql.DB) (*Recorder, error) {
	r := &Recorder{db: db}
	if err := r.migrate(); err != nil {
		return nil, fmt.Errorf("migrate metrics db: %w", err)
	}
	return r, nil
}

func (r *Recorder) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS llm_calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL DEFAULT '',
			project TEXT NOT NULL DEFAULT '',
			chapter TEXT NOT NULL DEFAULT '',
			purpose TEXT NOT NULL DEFAULT '',
			provider TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			execution_seconds REAL NOT NULL DEFAULT 0,
			total_seconds REAL NOT NULL DEFAULT 0,
			attempts INTEGER NOT NULL DEFAULT 0,
			success INTEGER NOT NULL DEFAULT 0,
			error_type TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_llm_calls_session ON llm_calls(session_id);
	`)
	return err
}

// Close releases the database handle.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// Record stores a single metric.
func (r *Recorder) Record(ctx context.Context, m Metric) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO llm_calls (
			session_id, project, chapter, purpose, provider, model,
			prompt_tokens, completion_tokens, total_tokens,
			execution_seconds, total_seconds, attempts, success, error_type, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.SessionID, m.Project, m.Chapter, m.Purpose, m.Provider, m.Model,
		m.PromptTokens, m.CompletionTokens, m.TotalTokens,
		m.ExecutionSeconds, m.TotalSeconds, m.Attempts, boolToInt(m.Success), m.ErrorType, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record metric: %w", err)
	}
	return nil
}

// SessionSummary aggregates all calls recorded for one session. An empty
// sessionID aggregates everything.
func (r *Recorder) SessionSummary(ctx context.Context, sessionID string) (Summary, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(total_seconds), 0)
		FROM llm_calls`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}

	var s Summary
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&s.Calls, &s.Failures, &s.PromptTokens, &s.CompletionTokens, &s.TotalTokens, &s.TotalSeconds,
	)
	if err != nil {
		return Summary{}, fmt.Errorf("session summary: %w", err)
	}
	return s, nil
}

// Recent returns the newest n metrics for inspection, newest first.
func (r *Recorder) Recent(ctx context.Context, n int) ([]Metric, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, project, chapter, purpose, provider, model,
		       prompt_tokens, completion_tokens, total_tokens,
		       execution_seconds, total_seconds, attempts, success, error_type, created_at
		FROM llm_calls ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("recent metrics: %w", err)
	}
	defer rows.Close()

	var out []Metric
	for rows.Next() {
		var m Metric
		var success int
		if err := rows.Scan(
			&m.ID, &m.SessionID, &m.Project, &m.Chapter, &m.Purpose, &m.Provider, &m.Model,
			&m.PromptTokens, &m.CompletionTokens, &m.TotalTokens,
			&m.ExecutionSeconds, &m.TotalSeconds, &m.Attempts, &success, &m.ErrorType, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.Success = success != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
