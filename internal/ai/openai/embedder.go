package openai

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/askdesk/askdesk/internal/pkg/errors"
)

// Embedder produces dense query vectors via the embeddings endpoint.
type Embedder struct {
	client *Client
}

// NewEmbedder creates an embedding adapter on the shared client.
func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

// Embed returns the embedding for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New(errors.CodeValidation, "text to embed cannot be empty")
	}

	resp, err := e.client.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(e.client.cfg.EmbedModel),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, errors.EmbeddingError("creating embedding", apiError("embeddings", err))
	}

	if len(resp.Data) == 0 {
		return nil, errors.New(errors.CodeEmbedding, "empty embedding response")
	}

	return resp.Data[0].Embedding, nil
}
