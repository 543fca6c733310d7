package narrative

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// Match is one similarity-search hit.
type Match struct {
	Kind  string  `json:"kind"`
	Ref   string  `json:"ref"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// SimilaritySearcher finds stored narrative content related to a query.
// Implementations manage their own concurrency; the agent treats them as
// stateless request/response collaborators.
type SimilaritySearcher interface {
	Search(ctx context.Context, query string, limit int) ([]Match, error)
}

// StoreSearcher is a keyword-overlap searcher over the narrative store.
// Token weights favor rarer terms so a distinctive name outranks filler
// words. Good enough for chapter-scale corpora without an embedding
// service in the loop.
type StoreSearcher struct {
	store *Store
}

// NewStoreSearcher wraps a store in the sparse searcher.
func NewStoreSearcher(store *Store) *StoreSearcher {
	return &StoreSearcher{store: store}
}

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokenize lowercases and splits text into letter/number runs, dropping
// single-rune ASCII tokens.
func Tokenize(text string) []string {
	var out []string
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if len(tok) < 2 && tok[0] < 0x80 {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Search scores every stored snippet against the query's tokens.
func (r *StoreSearcher) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 5
	}
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	snippets, err := r.store.AllSnippets(ctx)
	if err != nil {
		return nil, err
	}

	// Document frequency over the snippet corpus.
	df := make(map[string]int)
	tokenized := make([][]string, len(snippets))
	for i, sn := range snippets {
		tokenized[i] = Tokenize(sn.Text)
		seen := make(map[string]bool)
		for _, tok := range tokenized[i] {
			if !seen[tok] {
				df[tok]++
				seen[tok] = true
			}
		}
	}

	var matches []Match
	for i, sn := range snippets {
		counts := make(map[string]int)
		for _, tok := range tokenized[i] {
			counts[tok]++
		}
		score := 0.0
		for _, qt := range queryTokens {
			n := counts[qt]
			if n == 0 {
				continue
			}
			// Rarer tokens weigh more; repeated hits saturate quickly.
			weight := 1.0 / float64(1+df[qt])
			score += weight * float64(min(n, 3))
		}
		if score > 0 {
			matches = append(matches, Match{Kind: sn.Kind, Ref: sn.Ref, Text: sn.Text, Score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
