// Package fusion merges per-namespace result sets into one ranked list.
//
// Fusion is a pure function of (results by namespace, strategy weights): it
// scales each raw score by its namespace weight, stable-sorts, deduplicates
// by content fingerprint, and truncates. Keeping the ranking policy out of
// the search call lets it be tested in isolation.
package fusion

import (
	"sort"

	"github.com/askdesk/askdesk/internal/namespace"
	"github.com/askdesk/askdesk/internal/retrieval"
	"github.com/askdesk/askdesk/internal/strategy"
)

// Weighted is a search result with its namespace-weighted score.
type Weighted struct {
	retrieval.Result

	// OriginalScore is the raw store score, untouched.
	OriginalScore float32

	// WeightedScore is OriginalScore scaled by the namespace weight. Scores
	// are never renormalized back into [0,1]: cross-namespace comparability
	// depends on weights acting as directly comparable multipliers.
	WeightedScore float32

	// NamespaceType is the ownership type of the source namespace.
	NamespaceType namespace.Type

	// priority is the index of the source namespace in the strategy order;
	// rank is the within-namespace position. Together they make ties
	// deterministic.
	priority int
	rank     int
}

// Config configures fusion.
type Config struct {
	// RRFK enables a reciprocal-rank score when positive: each result scores
	// weight/(K+rank) instead of weight*score. Zero keeps plain weighted
	// fusion, the reference behavior.
	RRFK int
}

// Fuse merges, ranks, deduplicates, and truncates.
//
// Ordering is descending WeightedScore; ties keep namespace priority order,
// then within-namespace rank. The sort is stable, so identical inputs always
// produce bit-identical output. Duplicates share a content fingerprint
// (payload contentHash, falling back to result ID); the first — highest
// ranked — occurrence wins.
func Fuse(byNamespace map[namespace.Namespace][]retrieval.Result, strat strategy.Strategy, topK int, cfg Config) []Weighted {
	// Concatenate in strategy priority order so stable sorting preserves the
	// deterministic tie-break.
	merged := make([]Weighted, 0, totalResults(byNamespace))
	for prio, ns := range strat.Namespaces {
		weight := strat.Weight(ns)
		for rank, r := range byNamespace[ns] {
			merged = append(merged, Weighted{
				Result:        r,
				OriginalScore: r.Score,
				WeightedScore: score(r.Score, weight, rank, cfg),
				NamespaceType: ns.Type(),
				priority:      prio,
				rank:          rank,
			})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].WeightedScore > merged[j].WeightedScore
	})

	// Dedup after sorting: the first occurrence of a fingerprint is the
	// highest-weighted one.
	seen := make(map[string]struct{}, len(merged))
	fused := merged[:0]
	for _, w := range merged {
		key := w.ContentHash()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		fused = append(fused, w)
	}

	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}

	return fused
}

// TopScore returns the weighted score of the best fused result, or 0.
func TopScore(fused []Weighted) float32 {
	if len(fused) == 0 {
		return 0
	}
	return fused[0].WeightedScore
}

// AverageScore returns the mean weighted score of the fused set, or 0.
func AverageScore(fused []Weighted) float32 {
	if len(fused) == 0 {
		return 0
	}
	var sum float32
	for _, w := range fused {
		sum += w.WeightedScore
	}
	return sum / float32(len(fused))
}

func score(raw, weight float32, rank int, cfg Config) float32 {
	if cfg.RRFK > 0 {
		return weight / float32(cfg.RRFK+rank+1)
	}
	return raw * weight
}

func totalResults(byNamespace map[namespace.Namespace][]retrieval.Result) int {
	n := 0
	for _, rs := range byNamespace {
		n += len(rs)
	}
	return n
}
