// Package router decides how a query is answered from its confidence signals.
package router

// Route is the response path selected for a query.
type Route string

const (
	// RouteInstant serves a cached/canned response and skips retrieval.
	RouteInstant Route = "instant"

	// RouteRAG runs full context assembly and generation.
	RouteRAG Route = "rag"

	// RouteClarify asks a disambiguating question instead of guessing.
	RouteClarify Route = "clarify"

	// RouteFallback returns a generic could-not-understand response.
	RouteFallback Route = "fallback"
)

// FallbackReason distinguishes why a query ended on the fallback route, so
// operators can tell them apart in logs.
type FallbackReason string

const (
	// ReasonLowConfidence - intent confidence below the clarify threshold.
	ReasonLowConfidence FallbackReason = "low_confidence"

	// ReasonGenerationFailed - retrieval succeeded but generation errored.
	ReasonGenerationFailed FallbackReason = "generation_failed"

	// ReasonPipelineTimeout - the total pipeline deadline was exceeded.
	ReasonPipelineTimeout FallbackReason = "pipeline_timeout"
)

// Thresholds are the four named routing parameters. They come from
// configuration, never from literals scattered through the pipeline.
type Thresholds struct {
	// Instant: intent confidence at or above this bypasses retrieval.
	Instant float32

	// RAG: minimum intent confidence for the rag route.
	RAG float32

	// MinTopScore: minimum fused top score for the rag route.
	MinTopScore float32

	// Clarify: minimum intent confidence for a clarification question.
	Clarify float32
}

// DefaultThresholds returns the standard routing thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Instant:     0.95,
		RAG:         0.7,
		MinTopScore: 0.35,
		Clarify:     0.3,
	}
}

// Route is a pure function of the current query's signals; no state is kept
// between queries. Confidence gates before the fused score is consulted: a
// low-confidence intent falls back even with a perfect retrieval score.
func (t Thresholds) Route(fusedTopScore, intentConfidence float32) Route {
	switch {
	case intentConfidence >= t.Instant:
		return RouteInstant
	case intentConfidence >= t.RAG && fusedTopScore >= t.MinTopScore:
		return RouteRAG
	case intentConfidence >= t.Clarify:
		return RouteClarify
	default:
		return RouteFallback
	}
}

// Instant reports whether the intent confidence alone selects the instant
// route. The pipeline checks this before retrieval starts so instant queries
// never touch the vector store.
func (t Thresholds) InstantFor(intentConfidence float32) bool {
	return intentConfidence >= t.Instant
}
