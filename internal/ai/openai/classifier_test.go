package openai

import (
	"strings"
	"testing"

	"github.com/askdesk/askdesk/internal/intent"
	"github.com/askdesk/askdesk/internal/pipeline"
)

func TestParseClassification(t *testing.T) {
	content := `{
		"type": "calculation",
		"confidence": 0.87,
		"entities": {"period": "2024-06", "field": "commission"},
		"time_sensitive": true,
		"needs_multiple_doc_types": false
	}`

	got, err := parseClassification(content)
	if err != nil {
		t.Fatalf("parseClassification() error = %v", err)
	}

	if got.Type != intent.TypeCalculation {
		t.Errorf("Type = %q, want calculation", got.Type)
	}
	if got.Confidence != 0.87 {
		t.Errorf("Confidence = %v, want 0.87", got.Confidence)
	}
	if got.Entities[intent.EntityPeriod] != "2024-06" {
		t.Errorf("period entity = %q", got.Entities[intent.EntityPeriod])
	}
	if !got.TimeSensitive {
		t.Error("TimeSensitive = false, want true")
	}
}

func TestParseClassification_ClampsConfidence(t *testing.T) {
	got, err := parseClassification(`{"type": "general_qa", "confidence": 1.7}`)
	if err != nil {
		t.Fatalf("parseClassification() error = %v", err)
	}
	if got.Confidence != 1 {
		t.Errorf("Confidence = %v, want 1", got.Confidence)
	}
}

func TestParseClassification_RejectsUnknownType(t *testing.T) {
	if _, err := parseClassification(`{"type": "smalltalk", "confidence": 0.9}`); err == nil {
		t.Error("expected error for unknown intent type")
	}
}

func TestParseClassification_RejectsMalformedJSON(t *testing.T) {
	if _, err := parseClassification(`not json`); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestBuildGenerationPrompt(t *testing.T) {
	prompt := buildGenerationPrompt("what was my June commission", []pipeline.Passage{
		{Title: "commission 2024-06", Content: "E100 commission 1,200,000"},
		{Content: "policy text"},
	})

	for _, want := range []string{"[1] commission 2024-06", "E100 commission 1,200,000", "[2]", "Question: what was my June commission"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
