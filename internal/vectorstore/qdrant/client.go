// Package qdrant wraps the Qdrant Go client for per-namespace vector search.
// Each logical namespace maps to one Qdrant collection under a shared prefix.
package qdrant

import (
	"context"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/askdesk/askdesk/internal/pkg/errors"
)

const (
	// DefaultCollectionPrefix is prepended to all collection names.
	DefaultCollectionPrefix = "askdesk_"

	// DefaultHost is the default Qdrant host.
	DefaultHost = "localhost"

	// DefaultPort is the default Qdrant gRPC port.
	DefaultPort = 6334

	// DefaultTimeout is the default operation timeout.
	DefaultTimeout = 30 * time.Second
)

// ClientConfig holds configuration for the Qdrant client.
type ClientConfig struct {
	// Host is the Qdrant server host.
	Host string

	// Port is the Qdrant gRPC port.
	Port int

	// APIKey for authentication (optional).
	APIKey string

	// UseTLS enables TLS connection.
	UseTLS bool

	// CollectionPrefix is prepended to namespace names to form collection
	// names, keeping tenants of one Qdrant instance apart.
	CollectionPrefix string

	// Timeout for operations.
	Timeout time.Duration
}

// DefaultClientConfig returns sensible defaults for local development.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:             DefaultHost,
		Port:             DefaultPort,
		CollectionPrefix: DefaultCollectionPrefix,
		Timeout:          DefaultTimeout,
	}
}

// Client wraps the Qdrant Go client with namespace-aware search operations.
type Client struct {
	client *qdrant.Client
	config ClientConfig
	mu     sync.RWMutex
	closed bool
}

// NewClient creates a new Qdrant client wrapper.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.CollectionPrefix == "" {
		cfg.CollectionPrefix = DefaultCollectionPrefix
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "creating qdrant client", err)
	}

	return &Client{
		client: client,
		config: cfg,
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	return c.client.Close()
}

// HealthCheck verifies the Qdrant server is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return errors.New(errors.CodeUnavailable, "qdrant client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	reply, err := c.client.HealthCheck(ctx)
	if err != nil {
		return errors.Wrap(errors.CodeUnavailable, "qdrant health check", err)
	}

	if reply.GetTitle() == "" {
		return errors.New(errors.CodeUnavailable, "unexpected qdrant health check response")
	}

	return nil
}

// collectionName returns the full collection name for a namespace.
func (c *Client) collectionName(namespace string) string {
	return c.config.CollectionPrefix + namespace
}
