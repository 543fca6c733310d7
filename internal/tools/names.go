// Package tools defines the closed catalog of operations the analysis
// agent may invoke: names, parameter schemas, decoded parameter types,
// and the call/result wire shapes. It holds no execution logic; the
// agent package owns dispatch and state.
package tools

// Name identifies a tool in the closed catalog.
type Name string

const (
	// Information retrieval.
	SearchSimilar      Name = "search_similar"
	LookupCharacter    Name = "lookup_character"
	LookupForeshadow   Name = "lookup_foreshadow"
	PreviousParagraphs Name = "previous_paragraphs"

	// Analysis.
	AnalyzeParagraph Name = "analyze_paragraph"
	QuickCheck       Name = "quick_check"
	DeepCheck        Name = "deep_check"

	// Output.
	RecordSuggestion  Name = "record_suggestion"
	RecordObservation Name = "record_observation"

	// Control.
	NextParagraph    Name = "next_paragraph"
	FinishParagraph  Name = "finish_paragraph"
	CompleteAnalysis Name = "complete_analysis"
)

// Category groups tools for the prompt catalog.
type Category string

const (
	CategoryRetrieval Category = "information-retrieval"
	CategoryAnalysis  Category = "analysis"
	CategoryOutput    Category = "output"
	CategoryControl   Category = "control"
)

// All lists every tool name in catalog order.
func All() []Name {
	return []Name{
		SearchSimilar, LookupCharacter, LookupForeshadow, PreviousParagraphs,
		AnalyzeParagraph, QuickCheck, DeepCheck,
		RecordSuggestion, RecordObservation,
		NextParagraph, FinishParagraph, CompleteAnalysis,
	}
}

// Known reports whether name is in the catalog.
func Known(name Name) bool {
	_, ok := catalog[name]
	return ok
}
