package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/askdesk/askdesk/internal/pkg/errors"
)

// RateLimiter provides per-client rate limiting for the ask endpoint.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
}

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the rate limit per client.
	RequestsPerSecond float64

	// Burst is the maximum burst size.
	Burst int

	// CleanupInterval is how often stale clients are evicted.
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig returns sensible defaults.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 20,
		Burst:             40,
		CleanupInterval:   time.Minute,
	}
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg = DefaultRateLimiterConfig()
	}

	rl := &RateLimiter{
		clients:  make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
		cleanup:  cfg.CleanupInterval,
	}

	go rl.cleanupLoop()

	return rl
}

// Middleware wraps a handler with rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientKey(r)
		if !rl.limiter(client).Allow() {
			w.Header().Set("Retry-After", "1")
			apperrors.WriteError(w, apperrors.RateLimitedError(1))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) limiter(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lastSeen[client] = time.Now()

	l, ok := rl.clients[client]
	if !ok {
		l = rate.NewLimiter(rl.rate, rl.burst)
		rl.clients[client] = l
	}
	return l
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-3 * rl.cleanup)
		rl.mu.Lock()
		for client, seen := range rl.lastSeen {
			if seen.Before(cutoff) {
				delete(rl.clients, client)
				delete(rl.lastSeen, client)
			}
		}
		rl.mu.Unlock()
	}
}

// clientKey extracts a stable per-client key from the request.
// Prefers the first X-Forwarded-For hop when running behind a proxy.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
