package openai

import (
	"context"
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/askdesk/askdesk/internal/intent"
	"github.com/askdesk/askdesk/internal/pkg/errors"
)

const classifierMaxAttempts = 2

const classifierSystemPrompt = `You classify questions asked against an HR and compensation document corpus.
Respond with a single JSON object and nothing else:
{
  "type": one of "direct_lookup", "calculation", "comparison", "aggregation", "general_qa",
  "confidence": number in [0,1],
  "entities": object mapping "period", "person", "field" to extracted strings (omit missing ones),
  "time_sensitive": boolean, true when the question targets a specific time period,
  "needs_multiple_doc_types": boolean, true when answering needs more than one document type
}
"direct_lookup" means fetching one recorded value. "calculation" means arithmetic over the asker's own records. "comparison" means comparing values across periods, people, or plans. "aggregation" means rolling up values across a team or organization. "general_qa" is everything else.`

// Classifier classifies queries with a chat model in JSON mode. Temperature
// is pinned to zero so repeated queries classify identically.
type Classifier struct {
	client *Client
}

// NewClassifier creates a model-backed intent classifier.
func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

// classification mirrors the JSON contract in the system prompt.
type classification struct {
	Type                  string            `json:"type"`
	Confidence            float32           `json:"confidence"`
	Entities              map[string]string `json:"entities"`
	TimeSensitive         bool              `json:"time_sensitive"`
	NeedsMultipleDocTypes bool              `json:"needs_multiple_doc_types"`
}

// Classify implements intent.Classifier. A malformed model response is
// retried once; persistent failure returns an error and the caller falls
// back to the default intent.
func (c *Classifier) Classify(ctx context.Context, query string) (intent.Intent, error) {
	var lastErr error
	for attempt := 0; attempt < classifierMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return intent.Intent{}, errors.ClassifierError("classification cancelled", err)
		}

		result, err := c.classifyOnce(ctx, query)
		if err == nil {
			return result, nil
		}
		lastErr = err
		c.client.log.Warn("intent classification attempt failed",
			"attempt", attempt+1,
			"error", err,
		)
	}

	return intent.Intent{}, errors.ClassifierError("classifying query", lastErr)
}

func (c *Classifier) classifyOnce(ctx context.Context, query string) (intent.Intent, error) {
	resp, err := c.client.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.client.cfg.ChatModel,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	})
	if err != nil {
		return intent.Intent{}, apiError("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return intent.Intent{}, errors.New(errors.CodeClassifier, "empty classification response")
	}

	return parseClassification(resp.Choices[0].Message.Content)
}

// parseClassification decodes and validates the model's JSON answer.
func parseClassification(content string) (intent.Intent, error) {
	var parsed classification
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &parsed); err != nil {
		return intent.Intent{}, errors.Wrap(errors.CodeClassifier, "decoding classification", err)
	}

	t, err := intent.ParseType(parsed.Type)
	if err != nil {
		return intent.Intent{}, errors.Wrap(errors.CodeClassifier, "validating intent type", err)
	}

	return intent.Intent{
		Type:                  t,
		Confidence:            intent.Clamp(parsed.Confidence),
		Entities:              parsed.Entities,
		TimeSensitive:         parsed.TimeSensitive,
		NeedsMultipleDocTypes: parsed.NeedsMultipleDocTypes,
	}, nil
}
