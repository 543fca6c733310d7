// Package coherence derives continuity signals from paragraphs and turns
// them into actionable suggestions. The Analyzer and QuickCheck are pure
// rule-based helpers; the Checker is the one LLM-backed deep pass.
package coherence

import (
	"regexp"
	"sort"
	"strings"

	"github.com/proseforge/redline/internal/narrative"
)

// sceneCues maps a scene label to keywords that suggest it. First label
// with a hit wins, so order matters: more specific scenes come first.
var sceneCues = []struct {
	label string
	words []string
}{
	{"harbor", []string{"harbor", "dock", "pier", "quay", "wharf", "boat", "ship"}},
	{"street", []string{"street", "alley", "road", "sidewalk", "pavement", "crosswalk"}},
	{"indoors", []string{"room", "kitchen", "hall", "door", "window", "table", "stairs", "ceiling", "bed", "office", "tavern", "inn"}},
	{"outdoors", []string{"sky", "field", "forest", "hill", "rain", "wind", "grass", "trees", "cliff", "shore", "beach"}},
}

// timeMarkerRe matches the common explicit time expressions narration
// leans on. The first match in a paragraph is taken as its marker.
var timeMarkerRe = regexp.MustCompile(`(?i)\b(that (?:morning|afternoon|evening|night)|(?:the )?next (?:morning|day|evening|week)|(?:hours|minutes|days|weeks|months|years) later|at (?:dawn|dusk|noon|midnight)|by (?:morning|nightfall|evening)|(?:this|yesterday) (?:morning|afternoon|evening)|morning|afternoon|evening|night|dawn|dusk|midnight|noon)\b`)

// transitionRe matches cue phrases that mark a deliberate jump in time or
// place at a paragraph opening.
var transitionRe = regexp.MustCompile(`(?i)^\W*(meanwhile|later|afterwards|afterward|elsewhere|back (?:at|in)|across town|the next|that (?:night|morning|evening|afternoon)|hours later|days later|when .{1,40} (?:arrived|returned)|by the time)`)

var emotionCues = []struct {
	label string
	words []string
}{
	{"tense", []string{"afraid", "fear", "trembl", "panic", "dread", "nervous", "froze", "clench", "threat", "danger"}},
	{"angry", []string{"anger", "furious", "rage", "snapped", "shouted", "slammed", "glared", "spat"}},
	{"sad", []string{"grief", "wept", "tears", "mourn", "sorrow", "ache", "hollow", "lonely"}},
	{"joyful", []string{"laugh", "smile", "grinned", "delight", "joy", "warm", "relief", "bright"}},
	{"calm", []string{"quiet", "still", "gentle", "settled", "peaceful", "slow", "soft", "easy"}},
}

// actionVerbs are movement and high-consequence verbs worth surfacing as
// key actions. Stems, matched case-insensitively.
var actionVerbs = []string{
	"ran", "walked", "grabbed", "opened", "closed", "left", "arrived", "entered",
	"climbed", "fell", "threw", "struck", "pulled", "pushed", "turned", "whispered",
	"shouted", "drew", "dropped", "reached", "followed", "stopped", "jumped",
}

// nameRe finds capitalized tokens that could be proper names. Sentence
// position is handled separately so ordinary sentence-initial words are
// not mistaken for characters.
var nameRe = regexp.MustCompile(`\b\p{Lu}\p{Ll}+\b`)

// commonCapitalized are capitalized words that are never character names.
var commonCapitalized = map[string]bool{
	"The": true, "A": true, "An": true, "And": true, "But": true, "Then": true,
	"He": true, "She": true, "They": true, "It": true, "His": true, "Her": true,
	"When": true, "While": true, "After": true, "Before": true, "That": true,
	"There": true, "This": true, "If": true, "In": true, "On": true, "At": true,
	"By": true, "No": true, "Not": true, "Now": true, "So": true, "As": true,
	"We": true, "You": true, "I": true, "What": true, "Why": true, "How": true,
	"Meanwhile": true, "Later": true, "Suddenly": true, "Outside": true,
	"Inside": true, "Morning": true, "Night": true, "Mr": true, "Mrs": true,
}

// Analyze derives the rule-based signal set for one paragraph. Roster
// characters match by name or alias; capitalized tokens that look like
// names but are not in the roster are still reported, so downstream
// checks can flag characters the bible never introduced.
func Analyze(index int, text string, bible *narrative.Bible) narrative.ParagraphAnalysis {
	a := narrative.ParagraphAnalysis{Index: index}
	if strings.TrimSpace(text) == "" {
		return a
	}
	lower := strings.ToLower(text)

	a.Characters = detectCharacters(text, bible)
	a.Scene = detectScene(lower)
	if m := timeMarkerRe.FindString(text); m != "" {
		a.TimeMarker = strings.ToLower(m)
	}
	a.Emotion = detectEmotion(lower)
	a.Actions = detectActions(lower)
	a.Transition = transitionRe.MatchString(text)
	return a
}

func detectCharacters(text string, bible *narrative.Bible) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	if bible != nil {
		for _, c := range bible.Characters {
			if mentions(text, c.Name) {
				add(c.Name)
				continue
			}
			for _, alias := range c.Aliases {
				if mentions(text, alias) {
					add(c.Name)
					break
				}
			}
		}
	}

	// Proper-name tokens not backed by the roster. Sentence-initial words
	// only count when the same token also appears mid-sentence.
	candidates := map[string]int{}
	midSentence := map[string]bool{}
	for _, loc := range nameRe.FindAllStringIndex(text, -1) {
		word := text[loc[0]:loc[1]]
		if commonCapitalized[word] {
			continue
		}
		candidates[word]++
		if !sentenceInitial(text, loc[0]) {
			midSentence[word] = true
		}
	}
	var unknown []string
	for word := range candidates {
		if !midSentence[word] {
			continue
		}
		if bible != nil && bible.CharacterByName(word) != nil {
			continue // already added under its canonical name
		}
		unknown = append(unknown, word)
	}
	sort.Strings(unknown)
	for _, w := range unknown {
		add(w)
	}
	return out
}

// mentions reports whether name occurs in text on word boundaries,
// case-insensitively.
func mentions(text, name string) bool {
	if name == "" {
		return false
	}
	lt, ln := strings.ToLower(text), strings.ToLower(name)
	for i := 0; ; {
		j := strings.Index(lt[i:], ln)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(ln)
		beforeOK := start == 0 || !isWordByte(lt[start-1])
		afterOK := end == len(lt) || !isWordByte(lt[end])
		if beforeOK && afterOK {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// sentenceInitial reports whether the token starting at off begins the
// text or directly follows sentence-ending punctuation.
func sentenceInitial(text string, off int) bool {
	for i := off - 1; i >= 0; i-- {
		switch text[i] {
		case ' ', '\t', '\n', '\r', '"', '\'':
			continue
		case '.', '!', '?':
			return true
		default:
			return false
		}
	}
	return true
}

func detectScene(lower string) string {
	best, bestHits := "", 0
	for _, sc := range sceneCues {
		hits := 0
		for _, w := range sc.words {
			if strings.Contains(lower, w) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = sc.label, hits
		}
	}
	return best
}

func detectEmotion(lower string) string {
	best, bestHits := "", 0
	for _, ec := range emotionCues {
		hits := 0
		for _, w := range ec.words {
			if strings.Contains(lower, w) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = ec.label, hits
		}
	}
	return best
}

func detectActions(lower string) []string {
	var out []string
	for _, v := range actionVerbs {
		if mentions(lower, v) {
			out = append(out, v)
		}
	}
	return out
}
