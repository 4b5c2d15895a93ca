// Package openai adapts an OpenAI-compatible API to the pipeline's
// embedding, classification, generation, and rerank capabilities. Any
// endpoint speaking the OpenAI wire format works through BaseURL.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/askdesk/askdesk/internal/pkg/logger"
)

// Config holds the OpenAI-compatible API settings shared by all adapters.
type Config struct {
	// APIKey authenticates against the API.
	APIKey string

	// BaseURL overrides the endpoint for self-hosted compatible servers.
	BaseURL string

	// EmbedModel is the embedding model name.
	EmbedModel string

	// ChatModel is the chat model used for classification, generation,
	// and reranking.
	ChatModel string
}

// Client is the shared OpenAI client the capability adapters are built on.
type Client struct {
	api *openai.Client
	cfg Config
	log *logger.Logger
}

// NewClient creates the shared client.
func NewClient(cfg Config, log *logger.Logger) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		api: openai.NewClientWithConfig(clientCfg),
		cfg: cfg,
		log: log,
	}
}

// HealthCheck verifies API availability via ListModels, a free endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return apiError("listing models", err)
	}
	return nil
}

// apiError extracts status and message from a go-openai error for wrapping.
func apiError(operation string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: api error %d: %s", operation, apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("%s: request error %d: %s", operation, reqErr.HTTPStatusCode, detail)
		}
		return fmt.Errorf("%s: request error %d", operation, reqErr.HTTPStatusCode)
	}

	return fmt.Errorf("%s: %w", operation, err)
}

// extractDetail pulls the "detail" field some compatible servers put in
// JSON error bodies.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
