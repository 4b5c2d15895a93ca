package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/askdesk/askdesk/internal/pkg/hash"
	"github.com/askdesk/askdesk/internal/pkg/logger"
)

const answerKeyPrefix = "askdesk:answer:"

// AnswerCache stores generated answers in Redis keyed by query fingerprint.
// It backs the instant route: a high-confidence repeat question is served
// straight from here without touching the vector store.
type AnswerCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewAnswerCache connects to Redis and verifies the connection.
func NewAnswerCache(url string, ttl time.Duration, log *logger.Logger) (*AnswerCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = time.Hour
	}

	return &AnswerCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}, nil
}

// Get returns the cached answer for a query, if any. Redis failures are
// treated as misses; the cache is best-effort.
func (c *AnswerCache) Get(ctx context.Context, query string) (string, bool) {
	answer, err := c.client.Get(ctx, answerKeyPrefix+hash.QueryKey(query)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.log.Warn("answer cache read failed", "error", err)
		return "", false
	}
	return answer, true
}

// Put stores an answer. Failures are logged and swallowed.
func (c *AnswerCache) Put(ctx context.Context, query, answer string) {
	if err := c.client.Set(ctx, answerKeyPrefix+hash.QueryKey(query), answer, c.ttl).Err(); err != nil {
		c.log.Warn("answer cache write failed", "error", err)
	}
}

// Close releases the Redis connection.
func (c *AnswerCache) Close() error {
	return c.client.Close()
}
