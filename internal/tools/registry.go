package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Spec describes one catalog entry: what the tool does, the JSON schema
// its parameters must satisfy, and what it returns. The description and
// returns text feed the natural-language prompt catalog.
type Spec struct {
	Name        Name
	Category    Category
	Description string
	Params      json.RawMessage
	Returns     string
}

var catalog = map[Name]Spec{
	SearchSimilar: {
		Name:        SearchSimilar,
		Category:    CategoryRetrieval,
		Description: "Search stored narrative material (characters, foreshadows, earlier paragraphs) for text similar to a query.",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "what to look for"},
				"limit": {"type": "integer", "minimum": 1, "maximum": 20}
			},
			"required": ["query"]
		}`),
		Returns: "ranked matches, each with a kind, reference, and text snippet",
	},
	LookupCharacter: {
		Name:        LookupCharacter,
		Category:    CategoryRetrieval,
		Description: "Look up one character's bible entry and tracked state by name or alias.",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "character name or alias"}
			},
			"required": ["name"]
		}`),
		Returns: "the character record, or not-found",
	},
	LookupForeshadow: {
		Name:        LookupForeshadow,
		Category:    CategoryRetrieval,
		Description: "List planted foreshadowing that is still unresolved, optionally filtered by a query.",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "optional filter text"}
			}
		}`),
		Returns: "active foreshadow entries",
	},
	PreviousParagraphs: {
		Name:        PreviousParagraphs,
		Category:    CategoryRetrieval,
		Description: "Fetch the paragraphs immediately before the current one, in order.",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"count": {"type": "integer", "minimum": 1, "maximum": 10}
			}
		}`),
		Returns: "up to count prior paragraph texts, oldest first",
	},
	AnalyzeParagraph: {
		Name:        AnalyzeParagraph,
		Category:    CategoryAnalysis,
		Description: "Run the rule-based structural analysis of the current paragraph: characters, scene, time marker, emotion, key actions. Cached per paragraph.",
		Params:      json.RawMessage(`{"type": "object", "properties": {}}`),
		Returns:     "the paragraph's analysis record",
	},
	QuickCheck: {
		Name:        QuickCheck,
		Category:    CategoryAnalysis,
		Description: "Fast rule-based continuity comparison of the current paragraph against the previous one. No LLM call.",
		Params:      json.RawMessage(`{"type": "object", "properties": {}}`),
		Returns:     "a list of rule-based issues, possibly empty",
	},
	DeepCheck: {
		Name:        DeepCheck,
		Category:    CategoryAnalysis,
		Description: "Expensive LLM deep check of the current paragraph against the bible and retrieved context. Use sparingly, after cheaper tools.",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"dimensions": {
					"type": "array",
					"items": {"type": "string", "enum": ["coherence", "character", "foreshadowing", "timeline", "style", "scene"]}
				}
			}
		}`),
		Returns: "suggestions found by the deep check; empty when clean or when the check could not run",
	},
	RecordSuggestion: {
		Name:        RecordSuggestion,
		Category:    CategoryOutput,
		Description: "Record one revision suggestion for the current paragraph. original_text must be a verbatim excerpt of the paragraph.",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"original_text": {"type": "string", "minLength": 1},
				"suggested_text": {"type": "string", "minLength": 1},
				"reason": {"type": "string", "minLength": 1},
				"category": {"type": "string", "enum": ["coherence", "character", "foreshadowing", "timeline", "style", "scene"]},
				"severity": {"type": "string", "enum": ["high", "medium", "low"]}
			},
			"required": ["original_text", "suggested_text", "reason"]
		}`),
		Returns: "confirmation with the suggestion's position",
	},
	RecordObservation: {
		Name:        RecordObservation,
		Category:    CategoryOutput,
		Description: "Record a free-form observation about the current paragraph that is not a text change.",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"content": {"type": "string", "minLength": 1}
			},
			"required": ["content"]
		}`),
		Returns: "confirmation",
	},
	NextParagraph: {
		Name:        NextParagraph,
		Category:    CategoryControl,
		Description: "Advance to the next paragraph without finishing analysis of the current one.",
		Params:      json.RawMessage(`{"type": "object", "properties": {}}`),
		Returns:     "the new paragraph index and text, or end-of-chapter",
	},
	FinishParagraph: {
		Name:        FinishParagraph,
		Category:    CategoryControl,
		Description: "Mark the current paragraph done and advance to the next one.",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"note": {"type": "string", "description": "optional wrap-up note"}
			}
		}`),
		Returns: "the new paragraph index and text, or end-of-chapter",
	},
	CompleteAnalysis: {
		Name:        CompleteAnalysis,
		Category:    CategoryControl,
		Description: "Finish the whole run. Call once every paragraph has been covered.",
		Params: json.RawMessage(`{
			"type": "object",
			"properties": {
				"summary": {"type": "string", "description": "short summary of the run's findings"}
			},
			"required": ["summary"]
		}`),
		Returns: "nothing; the run ends",
	},
}

// Lookup returns the spec for name.
func Lookup(name Name) (Spec, bool) {
	s, ok := catalog[name]
	return s, ok
}

// Catalog returns every spec in catalog order.
func Catalog() []Spec {
	out := make([]Spec, 0, len(catalog))
	for _, n := range All() {
		out = append(out, catalog[n])
	}
	return out
}

// PromptCatalog renders the catalog as the natural-language tool listing
// embedded in the agent's system prompt, grouped by category.
func PromptCatalog() string {
	var b strings.Builder
	order := []Category{CategoryRetrieval, CategoryAnalysis, CategoryOutput, CategoryControl}
	for _, cat := range order {
		fmt.Fprintf(&b, "### %s\n", cat)
		for _, spec := range Catalog() {
			if spec.Category != cat {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s\n", spec.Name, spec.Description)
			fmt.Fprintf(&b, "  parameters: %s\n", compactSchema(spec.Params))
			fmt.Fprintf(&b, "  returns: %s\n", spec.Returns)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func compactSchema(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

var (
	schemaOnce sync.Once
	schemas    map[Name]*jsonschema.Schema
	schemaErr  error
)

func compiledSchemas() (map[Name]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemas = make(map[Name]*jsonschema.Schema, len(catalog))
		for name, spec := range catalog {
			compiler := jsonschema.NewCompiler()
			url := fmt.Sprintf("redline://tools/%s.json", name)
			if err := compiler.AddResource(url, strings.NewReader(string(spec.Params))); err != nil {
				schemaErr = fmt.Errorf("tool %s schema: %w", name, err)
				return
			}
			sch, err := compiler.Compile(url)
			if err != nil {
				schemaErr = fmt.Errorf("tool %s schema: %w", name, err)
				return
			}
			schemas[name] = sch
		}
	})
	return schemas, schemaErr
}

// validateParams checks raw against the tool's parameter schema.
func validateParams(name Name, raw json.RawMessage) error {
	compiled, err := compiledSchemas()
	if err != nil {
		return err
	}
	sch, ok := compiled[name]
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parameters are not valid JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("parameters invalid for %s: %w", name, err)
	}
	return nil
}
