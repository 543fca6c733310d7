// Package segment splits raw chapter text into analysis-ready paragraph units.
//
// Splitting happens on blank-line boundaries. Units below the minimum length
// are merged with a neighbor so the analyzer never sees throwaway fragments,
// and units above the maximum are re-split on sentence boundaries so a single
// unit always fits in one model prompt.
package segment

import (
	"regexp"
	"strings"
)

const (
	// DefaultMinLen is the minimum paragraph length in runes before a unit
	// is merged with its neighbor.
	DefaultMinLen = 40

	// DefaultMaxLen is the maximum paragraph length in runes before a unit
	// is re-split on sentence boundaries.
	DefaultMaxLen = 1200
)

// Options controls the segmentation length policy.
type Options struct {
	MinLen int // merge units shorter than this (runes)
	MaxLen int // re-split units longer than this (runes)
}

// DefaultOptions returns the standard length policy.
func DefaultOptions() Options {
	return Options{MinLen: DefaultMinLen, MaxLen: DefaultMaxLen}
}

// blankLine matches one or more blank lines in any common newline style.
var blankLine = regexp.MustCompile(`\n[ \t]*\n+`)

// sentenceEnd marks characters that terminate a sentence. Both ASCII and
// CJK fullwidth punctuation are recognized.
var sentenceEnd = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, // 。
	'！': true, // ！
	'？': true, // ？
	'…': true, // …
}

// Split segments text into ordered, non-empty paragraph strings.
//
// It never returns an empty string and never fails: whitespace-only input
// yields a nil slice. Concatenating the results reproduces the input text
// modulo whitespace.
func Split(text string, opts Options) []string {
	if opts.MinLen <= 0 {
		opts.MinLen = DefaultMinLen
	}
	if opts.MaxLen <= opts.MinLen {
		opts.MaxLen = DefaultMaxLen
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var units []string
	for _, raw := range blankLine.Split(text, -1) {
		if u := strings.TrimSpace(raw); u != "" {
			units = append(units, u)
		}
	}
	if len(units) == 0 {
		return nil
	}

	units = mergeShort(units, opts.MinLen)

	var out []string
	for _, u := range units {
		if len([]rune(u)) > opts.MaxLen {
			out = append(out, splitLong(u, opts.MaxLen)...)
		} else {
			out = append(out, u)
		}
	}
	return out
}

// mergeShort concatenates units shorter than minLen with the following unit,
// preserving order. A short trailing unit merges backward instead.
func mergeShort(units []string, minLen int) []string {
	if len(units) <= 1 {
		return units
	}

	var merged []string
	carry := ""
	for _, u := range units {
		if carry != "" {
			u = carry + "\n" + u
			carry = ""
		}
		if len([]rune(u)) < minLen {
			carry = u
			continue
		}
		merged = append(merged, u)
	}
	if carry != "" {
		if len(merged) == 0 {
			return []string{carry}
		}
		merged[len(merged)-1] = merged[len(merged)-1] + "\n" + carry
	}
	return merged
}

// splitLong re-splits an oversized unit on sentence boundaries, greedily
// packing sentences up to maxLen. A single sentence longer than maxLen is
// kept whole rather than cut mid-sentence.
func splitLong(unit string, maxLen int) []string {
	sentences := splitSentences(unit)
	if len(sentences) <= 1 {
		return []string{unit}
	}

	var out []string
	var buf []rune
	for _, s := range sentences {
		runes := []rune(s)
		if len(buf) > 0 && len(buf)+len(runes) > maxLen {
			out = append(out, strings.TrimSpace(string(buf)))
			buf = buf[:0]
		}
		buf = append(buf, runes...)
	}
	if trimmed := strings.TrimSpace(string(buf)); trimmed != "" {
		out = append(out, trimmed)
	}
	return out
}

// splitSentences cuts text after sentence-ending punctuation, keeping the
// punctuation (and any closing quote) attached to the sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !sentenceEnd[runes[i]] {
			continue
		}
		// Consume runs of terminal punctuation ("?!", "...") and a
		// trailing close-quote.
		end := i + 1
		for end < len(runes) && sentenceEnd[runes[end]] {
			end++
		}
		if end < len(runes) && (runes[end] == '"' || runes[end] == '”' || runes[end] == '’') {
			end++
		}
		sentences = append(sentences, string(runes[start:end]))
		i = end - 1
		start = end
	}
	if start < len(runes) {
		if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
			sentences = append(sentences, string(runes[start:]))
		}
	}
	return sentences
}
