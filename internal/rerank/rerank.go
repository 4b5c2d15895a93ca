// Package rerank applies a cross-encoder-style second scoring pass to the
// top fused candidates.
package rerank

import (
	"context"

	"github.com/askdesk/askdesk/internal/fusion"
	"github.com/askdesk/askdesk/internal/pkg/logger"
)

// Candidate is one document sent to the rerank capability.
type Candidate struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Ranked is a candidate with its rerank relevance score.
type Ranked struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// Reranker scores candidates against a query. Implementations are external
// capabilities; the pipeline only depends on this contract.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate, topN int) ([]Ranked, error)
}

// Apply reorders the top topN fused results by rerank score. Any rerank
// failure — including candidates the reranker didn't return — falls back to
// the fusion order; reranking can only reorder, never error out the pipeline.
func Apply(ctx context.Context, r Reranker, query string, fused []fusion.Weighted, topN int, log *logger.Logger) []fusion.Weighted {
	if r == nil || len(fused) == 0 {
		return fused
	}

	if topN <= 0 || topN > len(fused) {
		topN = len(fused)
	}
	head := fused[:topN]

	candidates := make([]Candidate, len(head))
	for i, w := range head {
		candidates[i] = Candidate{ID: w.ID, Text: w.Content()}
	}

	ranked, err := r.Rerank(ctx, query, candidates, topN)
	if err != nil {
		log.Warn("rerank failed, keeping fusion order", "error", err)
		return fused
	}

	byID := make(map[string]fusion.Weighted, len(head))
	for _, w := range head {
		byID[w.ID] = w
	}

	reordered := make([]fusion.Weighted, 0, len(fused))
	used := make(map[string]struct{}, len(ranked))
	for _, rk := range ranked {
		w, ok := byID[rk.ID]
		if !ok {
			log.Warn("rerank returned unknown candidate, keeping fusion order", "id", rk.ID)
			return fused
		}
		if _, dup := used[rk.ID]; dup {
			continue
		}
		used[rk.ID] = struct{}{}
		reordered = append(reordered, w)
	}

	// Candidates the reranker dropped keep their fusion order at the tail.
	for _, w := range head {
		if _, ok := used[w.ID]; !ok {
			reordered = append(reordered, w)
		}
	}

	return append(reordered, fused[topN:]...)
}
