// Package intent provides query intent classification for the retrieval
// pipeline.
package intent

import (
	"context"
	"fmt"
)

// Type is the closed set of query intents.
type Type string

const (
	// TypeDirectLookup - fetching a specific recorded value.
	TypeDirectLookup Type = "direct_lookup"

	// TypeCalculation - arithmetic over the employee's own records.
	TypeCalculation Type = "calculation"

	// TypeComparison - comparing values across periods, people, or plans.
	TypeComparison Type = "comparison"

	// TypeAggregation - rolling up values across an organization or team.
	TypeAggregation Type = "aggregation"

	// TypeGeneralQA - open-ended questions answered from any corpus.
	TypeGeneralQA Type = "general_qa"
)

// Types lists every intent type. Kept in sync with the constants above;
// strategy selection switches exhaustively over this set.
var Types = []Type{
	TypeDirectLookup,
	TypeCalculation,
	TypeComparison,
	TypeAggregation,
	TypeGeneralQA,
}

// ParseType validates a raw intent string.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown intent type: %q", s)
}

// Well-known entity keys extracted by the classifier.
const (
	EntityPeriod = "period"
	EntityPerson = "person"
	EntityField  = "field"
)

// Intent is the typed classification of a single query. Created once per
// query, never mutated, never persisted.
type Intent struct {
	// Type is the classified intent.
	Type Type `json:"type"`

	// Confidence is the classifier's confidence in [0,1].
	Confidence float32 `json:"confidence"`

	// Entities holds extracted structured values (period, person, field).
	Entities map[string]string `json:"entities,omitempty"`

	// TimeSensitive marks queries about a specific time period.
	TimeSensitive bool `json:"time_sensitive"`

	// NeedsMultipleDocTypes marks queries spanning several document types.
	NeedsMultipleDocTypes bool `json:"needs_multiple_doc_types"`
}

// Default returns the zero-confidence general_qa intent substituted whenever
// classification fails. The downstream pipeline always has a usable intent.
func Default() Intent {
	return Intent{
		Type:       TypeGeneralQA,
		Confidence: 0,
	}
}

// Classifier turns raw query text into a typed intent.
type Classifier interface {
	Classify(ctx context.Context, query string) (Intent, error)
}

// Clamp bounds a confidence value to [0,1].
func Clamp(confidence float32) float32 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
