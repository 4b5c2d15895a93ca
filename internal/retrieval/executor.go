// Package retrieval executes a search strategy against the vector store,
// one call per namespace.
package retrieval

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/askdesk/askdesk/internal/namespace"
	"github.com/askdesk/askdesk/internal/pkg/logger"
	"github.com/askdesk/askdesk/internal/strategy"
)

// Result is a single raw search hit. The pipeline never mutates ID or Score.
type Result struct {
	// ID is the vector store point identifier.
	ID string

	// Score is the raw similarity score in the store's native range.
	Score float32

	// Metadata is the point payload (content, contentHash, docType, period, ...).
	Metadata map[string]any

	// Namespace is the namespace this hit came from.
	Namespace namespace.Namespace
}

// Metadata keys the pipeline relies on.
const (
	MetaContent     = "content"
	MetaContentHash = "contentHash"
	MetaDocType     = "docType"
	MetaTitle       = "title"
)

// ContentHash returns the result's content fingerprint, falling back to the
// raw ID when the payload has none. This is the fusion deduplication key.
func (r Result) ContentHash() string {
	if h, ok := r.Metadata[MetaContentHash].(string); ok && h != "" {
		return h
	}
	return r.ID
}

// Content returns the result's text payload, if any.
func (r Result) Content() string {
	if c, ok := r.Metadata[MetaContent].(string); ok {
		return c
	}
	return ""
}

// SearchFunc issues one search call against a single namespace.
type SearchFunc func(ctx context.Context, ns namespace.Namespace, topK int) ([]Result, error)

// Executor runs a strategy's namespace searches.
type Executor struct {
	cfg Config
	log *logger.Logger
}

// Config configures the executor.
type Config struct {
	// NamespaceTimeout bounds each per-namespace search call. A namespace
	// exceeding it contributes an empty result set, not a failure.
	NamespaceTimeout time.Duration

	// TopKPerNamespace is the candidate count requested from each namespace.
	TopKPerNamespace int
}

// DefaultConfig returns sensible executor defaults.
func DefaultConfig() Config {
	return Config{
		NamespaceTimeout: 2 * time.Second,
		TopKPerNamespace: 20,
	}
}

// NewExecutor creates an executor.
func NewExecutor(cfg Config, log *logger.Logger) *Executor {
	if cfg.NamespaceTimeout <= 0 || cfg.TopKPerNamespace <= 0 {
		cfg = DefaultConfig()
	}
	return &Executor{cfg: cfg, log: log}
}

// Execute runs every namespace search in the strategy and returns raw results
// keyed by namespace. A failed or timed-out namespace appears with an empty
// result set; per-namespace errors never abort the other searches and never
// propagate to the caller. An empty strategy returns an empty map.
func (e *Executor) Execute(ctx context.Context, strat strategy.Strategy, search SearchFunc) map[namespace.Namespace][]Result {
	if strat.Empty() {
		return map[namespace.Namespace][]Result{}
	}

	if strat.Mode == strategy.ModeSequential {
		return e.executeSequential(ctx, strat, search)
	}
	return e.executeParallel(ctx, strat, search)
}

// executeParallel fans out one goroutine per namespace and joins on all of
// them. Results land in a per-namespace slot, so no locking is needed.
func (e *Executor) executeParallel(ctx context.Context, strat strategy.Strategy, search SearchFunc) map[namespace.Namespace][]Result {
	slots := make([][]Result, len(strat.Namespaces))

	g, gctx := errgroup.WithContext(ctx)
	for i, ns := range strat.Namespaces {
		g.Go(func() error {
			slots[i] = e.searchOne(gctx, ns, search)
			// Errors are absorbed per namespace; never cancel siblings.
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[namespace.Namespace][]Result, len(strat.Namespaces))
	for i, ns := range strat.Namespaces {
		out[ns] = slots[i]
	}
	return out
}

// executeSequential walks namespaces in strategy order and stops early once
// the cumulative result count reaches MinResultsBeforeStop. Calculation
// queries avoid scanning further namespaces once the authoritative one has
// answered.
func (e *Executor) executeSequential(ctx context.Context, strat strategy.Strategy, search SearchFunc) map[namespace.Namespace][]Result {
	out := make(map[namespace.Namespace][]Result, len(strat.Namespaces))

	total := 0
	for _, ns := range strat.Namespaces {
		if ctx.Err() != nil {
			break
		}

		results := e.searchOne(ctx, ns, search)
		out[ns] = results
		total += len(results)

		if strat.MinResultsBeforeStop > 0 && total >= strat.MinResultsBeforeStop {
			break
		}
	}

	return out
}

// searchOne runs a single namespace search under the per-namespace timeout.
// Any failure is recorded as an empty result set.
func (e *Executor) searchOne(ctx context.Context, ns namespace.Namespace, search SearchFunc) []Result {
	nsCtx, cancel := context.WithTimeout(ctx, e.cfg.NamespaceTimeout)
	defer cancel()

	results, err := search(nsCtx, ns, e.cfg.TopKPerNamespace)
	if err != nil {
		e.log.WithNamespace(string(ns)).Warn("namespace search failed, treating as empty",
			"error", err,
		)
		return nil
	}

	// Stamp the source namespace; search implementations don't have to.
	for i := range results {
		results[i].Namespace = ns
	}
	return results
}
