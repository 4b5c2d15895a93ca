package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/askdesk/askdesk/internal/pipeline"
	"github.com/askdesk/askdesk/internal/pkg/errors"
)

const generatorSystemPrompt = `You answer questions for employees using only the numbered context passages provided.
Quote figures exactly as they appear in the passages. If the passages do not contain the answer, say so instead of guessing.
Answer in the language of the question.`

// Generator produces grounded answers from retrieved passages.
type Generator struct {
	client *Client
}

// NewGenerator creates an answer generation adapter on the shared client.
func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Generate implements pipeline.Generator.
func (g *Generator) Generate(ctx context.Context, query string, passages []pipeline.Passage) (string, error) {
	resp, err := g.client.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.client.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: generatorSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildGenerationPrompt(query, passages)},
		},
	})
	if err != nil {
		return "", errors.GenerationError("generating answer", apiError("chat completion", err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(errors.CodeGeneration, "empty generation response")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.New(errors.CodeGeneration, "blank generated answer")
	}
	return answer, nil
}

func buildGenerationPrompt(query string, passages []pipeline.Passage) string {
	var b strings.Builder
	b.WriteString("Context passages:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d]", i+1)
		if p.Title != "" {
			fmt.Fprintf(&b, " %s", p.Title)
		}
		b.WriteString("\n")
		b.WriteString(p.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}
