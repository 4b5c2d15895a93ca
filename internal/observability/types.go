package observability

import "time"

// QueryLog is one append-only record per answered query. It is the only
// durable artifact the pipeline produces.
type QueryLog struct {
	Timestamp        time.Time        `json:"timestamp"`
	Query            string           `json:"query"`
	Intent           string           `json:"intent"`
	IntentConfidence float32          `json:"intent_confidence"`
	Namespaces       []string         `json:"namespaces"`
	ExecutionMode    string           `json:"execution_mode,omitempty"`
	Route            string           `json:"route"`
	FallbackReason   string           `json:"fallback_reason,omitempty"`
	ResultCount      int              `json:"result_count"`
	TopScore         float32          `json:"top_score"`
	StageLatencyMs   map[string]int64 `json:"stage_latency_ms"`
	TotalLatencyMs   int64            `json:"total_latency_ms"`
	RerankApplied    bool             `json:"rerank_applied"`
	Successful       bool             `json:"successful"`
}

// Stage names used in StageLatencyMs.
const (
	StageClassify = "classify"
	StageEmbed    = "embed"
	StageRetrieve = "retrieve"
	StageFuse     = "fuse"
	StageRerank   = "rerank"
	StageGenerate = "generate"
)
