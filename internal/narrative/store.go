package narrative

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists the story bible and previously seen chapter paragraphs in
// an embedded sqlite database. It backs the agent's retrieval tools; every
// lookup degrades to "not found" rather than an error when data is absent.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the sqlite database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// sqlite serializes writers; a single connection avoids lock errors
	// from concurrent sessions.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}

// NewStoreWithDB wraps an existing connection, running migrations. Used by
// tests with in-memory databases.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS characters (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			aliases TEXT,
			traits TEXT,
			state TEXT,
			first_chapter TEXT,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS foreshadows (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			planted_chapter TEXT,
			status TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS paragraphs (
			project TEXT NOT NULL,
			chapter TEXT NOT NULL,
			idx INTEGER NOT NULL,
			content TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (project, chapter, idx)
		);

		CREATE INDEX IF NOT EXISTS idx_characters_name ON characters(name);
		CREATE INDEX IF NOT EXISTS idx_paragraphs_chapter ON paragraphs(project, chapter);
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ImportBible upserts the bible's roster and foreshadow entries.
func (s *Store) ImportBible(ctx context.Context, b *Bible) error {
	if b == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, c := range b.Characters {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO characters (id, name, aliases, traits, state, first_chapter, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, aliases = excluded.aliases,
				traits = excluded.traits, state = excluded.state,
				first_chapter = excluded.first_chapter, updated_at = excluded.updated_at`,
			c.ID, c.Name, strings.Join(c.Aliases, ","), c.Traits, c.State, c.FirstChapter, now)
		if err != nil {
			return fmt.Errorf("import character %s: %w", c.Name, err)
		}
	}
	for _, f := range b.Foreshadows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO foreshadows (id, content, planted_chapter, status, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				content = excluded.content, planted_chapter = excluded.planted_chapter,
				status = excluded.status, updated_at = excluded.updated_at`,
			f.ID, f.Content, f.PlantedChapter, string(f.Status), now)
		if err != nil {
			return fmt.Errorf("import foreshadow %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// LookupCharacter finds a character by exact name, alias, or substring
// match, in that order. Returns nil when nothing matches.
func (s *Store) LookupCharacter(ctx context.Context, name string) (*Character, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, aliases, traits, state, first_chapter FROM characters`)
	if err != nil {
		return nil, fmt.Errorf("lookup character: %w", err)
	}
	defer rows.Close()

	var substrHit *Character
	for rows.Next() {
		var c Character
		var aliases string
		if err := rows.Scan(&c.ID, &c.Name, &aliases, &c.Traits, &c.State, &c.FirstChapter); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		if aliases != "" {
			c.Aliases = strings.Split(aliases, ",")
		}
		if strings.EqualFold(c.Name, name) {
			return &c, nil
		}
		for _, a := range c.Aliases {
			if strings.EqualFold(a, name) {
				return &c, nil
			}
		}
		if substrHit == nil && containsFold(c.Name, name) {
			hit := c
			substrHit = &hit
		}
	}
	return substrHit, rows.Err()
}

// ActiveForeshadows returns unresolved foreshadow entries, optionally
// filtered by a substring query.
func (s *Store) ActiveForeshadows(ctx context.Context, query string) ([]Foreshadow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, planted_chapter, status FROM foreshadows WHERE status = ?`,
		string(ForeshadowPlanted))
	if err != nil {
		return nil, fmt.Errorf("lookup foreshadows: %w", err)
	}
	defer rows.Close()

	var out []Foreshadow
	for rows.Next() {
		var f Foreshadow
		var status string
		if err := rows.Scan(&f.ID, &f.Content, &f.PlantedChapter, &status); err != nil {
			return nil, fmt.Errorf("scan foreshadow: %w", err)
		}
		f.Status = ForeshadowStatus(status)
		if query == "" || containsFold(f.Content, query) {
			out = append(out, f)
		}
	}
	return out, rows.Err()
}

// SaveParagraphs replaces the stored paragraphs for one chapter.
func (s *Store) SaveParagraphs(ctx context.Context, project, chapter string, paragraphs []string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM paragraphs WHERE project = ? AND chapter = ?`, project, chapter); err != nil {
		return fmt.Errorf("clear paragraphs: %w", err)
	}
	for i, p := range paragraphs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO paragraphs (project, chapter, idx, content, updated_at) VALUES (?, ?, ?, ?, ?)`,
			project, chapter, i, p, now); err != nil {
			return fmt.Errorf("save paragraph %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// PreviousParagraphs returns up to n stored paragraphs immediately before
// beforeIndex in the given chapter, in document order.
func (s *Store) PreviousParagraphs(ctx context.Context, project, chapter string, beforeIndex, n int) ([]string, error) {
	if n <= 0 {
		n = 3
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT content FROM paragraphs
		WHERE project = ? AND chapter = ? AND idx < ?
		ORDER BY idx DESC LIMIT ?`,
		project, chapter, beforeIndex, n)
	if err != nil {
		return nil, fmt.Errorf("previous paragraphs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan paragraph: %w", err)
		}
		out = append(out, content)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse back to document order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Snippet is one searchable unit of stored narrative content.
type Snippet struct {
	Kind string `json:"kind"` // "paragraph", "character", "foreshadow"
	Ref  string `json:"ref"`  // chapter:idx or record id
	Text string `json:"text"`
}

// AllSnippets returns every searchable row for the sparse retriever.
func (s *Store) AllSnippets(ctx context.Context) ([]Snippet, error) {
	var out []Snippet

	rows, err := s.db.QueryContext(ctx,
		`SELECT chapter, idx, content FROM paragraphs ORDER BY chapter, idx`)
	if err != nil {
		return nil, fmt.Errorf("snippets: %w", err)
	}
	for rows.Next() {
		var chapter string
		var idx int
		var content string
		if err := rows.Scan(&chapter, &idx, &content); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		out = append(out, Snippet{Kind: "paragraph", Ref: fmt.Sprintf("%s:%d", chapter, idx), Text: content})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, name, traits, state FROM characters`)
	if err != nil {
		return nil, fmt.Errorf("snippets: %w", err)
	}
	for rows.Next() {
		var id, name, traits, state string
		if err := rows.Scan(&id, &name, &traits, &state); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		out = append(out, Snippet{Kind: "character", Ref: id, Text: name + ": " + traits + " " + state})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, content FROM foreshadows`)
	if err != nil {
		return nil, fmt.Errorf("snippets: %w", err)
	}
	for rows.Next() {
		var id, content string
		if err := rows.Scan(&id, &content); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		out = append(out, Snippet{Kind: "foreshadow", Ref: id, Text: content})
	}
	rows.Close()
	return out, rows.Err()
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
