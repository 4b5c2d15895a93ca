package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/askdesk/askdesk/internal/pkg/errors"
	"github.com/askdesk/askdesk/internal/rerank"
)

const rerankerSystemPrompt = `You rank document passages by relevance to a question.
Respond with a single JSON object and nothing else:
{"ranking": [{"id": passage id, "score": relevance in [0,1]}, ...]}
List every passage, most relevant first.`

// Reranker scores candidates against the query with a chat model in JSON
// mode. It is an optional pass; the pipeline keeps fusion order when it
// fails.
type Reranker struct {
	client *Client
}

// NewReranker creates a model-backed reranker on the shared client.
func NewReranker(client *Client) *Reranker {
	return &Reranker{client: client}
}

// Rerank implements rerank.Reranker.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []rerank.Candidate, topN int) ([]rerank.Ranked, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	resp, err := r.client.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.client.cfg.ChatModel,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rerankerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildRerankPrompt(query, candidates)},
		},
	})
	if err != nil {
		return nil, errors.RerankError("reranking candidates", apiError("chat completion", err))
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New(errors.CodeRerank, "empty rerank response")
	}

	var parsed struct {
		Ranking []rerank.Ranked `json:"ranking"`
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, errors.Wrap(errors.CodeRerank, "decoding rerank response", err)
	}
	if len(parsed.Ranking) == 0 {
		return nil, errors.New(errors.CodeRerank, "rerank response listed no passages")
	}

	if topN > 0 && len(parsed.Ranking) > topN {
		parsed.Ranking = parsed.Ranking[:topN]
	}
	return parsed.Ranking, nil
}

func buildRerankPrompt(query string, candidates []rerank.Candidate) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nPassages:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "id=%s\n%s\n\n", c.ID, c.Text)
	}
	return b.String()
}
