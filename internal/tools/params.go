package tools

import (
	"encoding/json"
	"fmt"
)

// Params is the decoded, tool-specific parameter set. Exactly one
// concrete type exists per tool; DecodeParams picks it from the name.
type Params interface {
	tool() Name
}

type SearchSimilarParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type LookupCharacterParams struct {
	Name string `json:"name"`
}

type LookupForeshadowParams struct {
	Query string `json:"query,omitempty"`
}

type PreviousParagraphsParams struct {
	Count int `json:"count,omitempty"`
}

type AnalyzeParagraphParams struct{}

type QuickCheckParams struct{}

type DeepCheckParams struct {
	Dimensions []string `json:"dimensions,omitempty"`
}

type RecordSuggestionParams struct {
	Original  string `json:"original_text"`
	Suggested string `json:"suggested_text"`
	Reason    string `json:"reason"`
	Category  string `json:"category,omitempty"`
	Severity  string `json:"severity,omitempty"`
}

type RecordObservationParams struct {
	Content string `json:"content"`
}

type NextParagraphParams struct{}

type FinishParagraphParams struct {
	Note string `json:"note,omitempty"`
}

type CompleteAnalysisParams struct {
	Summary string `json:"summary"`
}

func (SearchSimilarParams) tool() Name      { return SearchSimilar }
func (LookupCharacterParams) tool() Name    { return LookupCharacter }
func (LookupForeshadowParams) tool() Name   { return LookupForeshadow }
func (PreviousParagraphsParams) tool() Name { return PreviousParagraphs }
func (AnalyzeParagraphParams) tool() Name   { return AnalyzeParagraph }
func (QuickCheckParams) tool() Name         { return QuickCheck }
func (DeepCheckParams) tool() Name          { return DeepCheck }
func (RecordSuggestionParams) tool() Name   { return RecordSuggestion }
func (RecordObservationParams) tool() Name  { return RecordObservation }
func (NextParagraphParams) tool() Name      { return NextParagraph }
func (FinishParagraphParams) tool() Name    { return FinishParagraph }
func (CompleteAnalysisParams) tool() Name   { return CompleteAnalysis }

// DecodeParams validates raw against the tool's schema and unmarshals it
// into the tool's concrete parameter type. This is the single validation
// point: past here, handlers trust their parameters.
func DecodeParams(name Name, raw json.RawMessage) (Params, error) {
	if err := validateParams(name, raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	var p Params
	switch name {
	case SearchSimilar:
		p = &SearchSimilarParams{}
	case LookupCharacter:
		p = &LookupCharacterParams{}
	case LookupForeshadow:
		p = &LookupForeshadowParams{}
	case PreviousParagraphs:
		p = &PreviousParagraphsParams{}
	case AnalyzeParagraph:
		p = &AnalyzeParagraphParams{}
	case QuickCheck:
		p = &QuickCheckParams{}
	case DeepCheck:
		p = &DeepCheckParams{}
	case RecordSuggestion:
		p = &RecordSuggestionParams{}
	case RecordObservation:
		p = &RecordObservationParams{}
	case NextParagraph:
		p = &NextParagraphParams{}
	case FinishParagraph:
		p = &FinishParagraphParams{}
	case CompleteAnalysis:
		p = &CompleteAnalysisParams{}
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s parameters: %w", name, err)
	}
	return p, nil
}
