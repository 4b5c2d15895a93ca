// Package pipeline orchestrates a query through classification, namespace
// strategy selection, multi-namespace retrieval, fusion, confidence routing,
// and answer generation.
package pipeline

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"github.com/askdesk/askdesk/internal/cache"
	"github.com/askdesk/askdesk/internal/fusion"
	"github.com/askdesk/askdesk/internal/intent"
	"github.com/askdesk/askdesk/internal/metrics"
	"github.com/askdesk/askdesk/internal/namespace"
	"github.com/askdesk/askdesk/internal/observability"
	"github.com/askdesk/askdesk/internal/pkg/errors"
	"github.com/askdesk/askdesk/internal/pkg/logger"
	"github.com/askdesk/askdesk/internal/rerank"
	"github.com/askdesk/askdesk/internal/retrieval"
	"github.com/askdesk/askdesk/internal/router"
	"github.com/askdesk/askdesk/internal/strategy"
)

// Passage is one retrieved document handed to the generator as grounding
// context.
type Passage struct {
	Title   string
	Content string
}

// Embedder produces a dense vector for a query.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces an answer grounded in the given passages.
type Generator interface {
	Generate(ctx context.Context, query string, passages []Passage) (string, error)
}

// Searcher queries one namespace of the vector store.
type Searcher interface {
	Search(ctx context.Context, ns namespace.Namespace, vector []float32, topK int) ([]retrieval.Result, error)
}

// AnswerCache stores generated answers for instant-route reuse.
type AnswerCache interface {
	Get(ctx context.Context, query string) (string, bool)
	Put(ctx context.Context, query, answer string)
}

// Request is a single question with its access scope.
type Request struct {
	// Query is the question text.
	Query string `json:"query"`

	// EmployeeID scopes the query to an employee's personal namespace.
	EmployeeID string `json:"employee_id,omitempty"`

	// OrganizationID scopes the query to an organization namespace.
	OrganizationID string `json:"organization_id,omitempty"`

	// CategoryID also selects the organization namespace.
	CategoryID string `json:"category_id,omitempty"`

	// IncludePublic controls public namespace participation. Nil means include.
	IncludePublic *bool `json:"include_public,omitempty"`

	// TopK overrides the configured fused result count when positive.
	TopK int `json:"top_k,omitempty"`
}

// Source describes one document backing an answer.
type Source struct {
	ID        string  `json:"id"`
	Namespace string  `json:"namespace"`
	Title     string  `json:"title,omitempty"`
	DocType   string  `json:"doc_type,omitempty"`
	Score     float32 `json:"score"`
}

// Response is the answer to one request.
type Response struct {
	// Route is the response path that produced this answer.
	Route router.Route `json:"route"`

	// Answer is the response text. On the clarify route it is the
	// clarification question; on fallback, the generic message.
	Answer string `json:"answer"`

	// FallbackReason is set only on the fallback route.
	FallbackReason router.FallbackReason `json:"fallback_reason,omitempty"`

	// Intent and IntentConfidence echo the classification.
	Intent           intent.Type `json:"intent"`
	IntentConfidence float32     `json:"intent_confidence"`

	// Sources lists the documents backing a rag answer.
	Sources []Source `json:"sources,omitempty"`

	// TopScore is the best fused score before reranking.
	TopScore float32 `json:"top_score"`

	// CacheHit marks an instant answer served from the answer cache.
	CacheHit bool `json:"cache_hit,omitempty"`

	// TotalLatencyMs is the wall time spent answering.
	TotalLatencyMs int64 `json:"total_latency_ms"`
}

// Config configures the pipeline service.
type Config struct {
	// TotalTimeout bounds the whole pipeline per query.
	TotalTimeout time.Duration

	// TopK is the fused result count kept for context assembly.
	TopK int

	// EnableReranking turns the rerank sub-stage on.
	EnableReranking bool

	// RerankTopK is how many fused candidates the reranker sees.
	RerankTopK int

	// Thresholds are the confidence routing parameters.
	Thresholds router.Thresholds

	// Fusion configures the fusion stage.
	Fusion fusion.Config
}

// DefaultConfig returns sensible pipeline defaults.
func DefaultConfig() Config {
	return Config{
		TotalTimeout: 15 * time.Second,
		TopK:         10,
		RerankTopK:   10,
		Thresholds:   router.DefaultThresholds(),
	}
}

// Service runs the query pipeline. All capability dependencies are
// interfaces; reranker, answer cache, embedding cache, recorder, and metrics
// are optional and may be nil.
type Service struct {
	cfg        Config
	log        *logger.Logger
	classifier intent.Classifier
	embedder   Embedder
	searcher   Searcher
	generator  Generator
	reranker   rerank.Reranker
	answers    AnswerCache
	embedCache *cache.EmbeddingCache
	selector   *strategy.Selector
	executor   *retrieval.Executor
	recorder   *observability.Recorder
	metrics    *metrics.Metrics

	// droppedSeen tracks the recorder drop count already exported, so the
	// counter only ever receives positive deltas.
	droppedSeen atomic.Int64
}

// Deps bundles the service dependencies.
type Deps struct {
	Classifier intent.Classifier
	Embedder   Embedder
	Searcher   Searcher
	Generator  Generator
	Reranker   rerank.Reranker
	Answers    AnswerCache
	EmbedCache *cache.EmbeddingCache
	Selector   *strategy.Selector
	Executor   *retrieval.Executor
	Recorder   *observability.Recorder
	Metrics    *metrics.Metrics
}

// NewService creates the pipeline service.
func NewService(cfg Config, deps Deps, log *logger.Logger) *Service {
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = 15 * time.Second
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.RerankTopK <= 0 {
		cfg.RerankTopK = cfg.TopK
	}

	return &Service{
		cfg:        cfg,
		log:        log,
		classifier: deps.Classifier,
		embedder:   deps.Embedder,
		searcher:   deps.Searcher,
		generator:  deps.Generator,
		reranker:   deps.Reranker,
		answers:    deps.Answers,
		embedCache: deps.EmbedCache,
		selector:   deps.Selector,
		executor:   deps.Executor,
		recorder:   deps.Recorder,
		metrics:    deps.Metrics,
	}
}

// Answer runs the full pipeline for one request. The only error it returns
// is request validation; every internal failure degrades to a routed
// response instead.
func (s *Service) Answer(ctx context.Context, req Request) (Response, error) {
	if req.Query == "" {
		return Response{}, errors.ValidationError("query cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.TotalTimeout)
	defer cancel()

	started := time.Now()
	stages := make(map[string]int64, 6)

	it := s.classify(ctx, req.Query, stages)

	if s.cfg.Thresholds.InstantFor(it.Confidence) {
		return s.instant(ctx, req, it, started, stages), nil
	}

	resolved := namespace.Resolve(namespace.Context{
		EmployeeID:     req.EmployeeID,
		OrganizationID: req.OrganizationID,
		CategoryID:     req.CategoryID,
		IncludePublic:  req.IncludePublic,
	})
	strat := s.selector.Select(it, resolved)

	fused, topScore := s.retrieve(ctx, req, strat, stages)

	route := s.cfg.Thresholds.Route(topScore, it.Confidence)

	// Exceeding the pipeline deadline always resolves to fallback, whatever
	// the confidence signals say.
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		route = router.RouteFallback
	}

	resp := Response{
		Route:            route,
		Intent:           it.Type,
		IntentConfidence: it.Confidence,
		TopScore:         topScore,
	}

	switch route {
	case router.RouteRAG:
		answer, genErr := s.generate(ctx, req.Query, fused, stages)
		if genErr != nil {
			resp.Route = router.RouteFallback
			if stderrors.Is(genErr, context.DeadlineExceeded) {
				resp.FallbackReason = router.ReasonPipelineTimeout
			} else {
				resp.FallbackReason = router.ReasonGenerationFailed
			}
			resp.Answer = fallbackMessage(resp.FallbackReason)
		} else {
			resp.Answer = answer
			resp.Sources = sources(fused)
			if s.answers != nil {
				s.answers.Put(ctx, req.Query, answer)
			}
		}
	case router.RouteClarify:
		resp.Answer = clarifyMessage(it)
	default: // router.RouteFallback
		resp.FallbackReason = router.ReasonLowConfidence
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			resp.FallbackReason = router.ReasonPipelineTimeout
		}
		resp.Answer = fallbackMessage(resp.FallbackReason)
	}

	resp.TotalLatencyMs = time.Since(started).Milliseconds()
	s.record(req, it, strat, resp, len(fused), stages)

	return resp, nil
}

// classify runs intent classification, substituting the default intent on
// any failure so the pipeline always proceeds.
func (s *Service) classify(ctx context.Context, query string, stages map[string]int64) intent.Intent {
	start := time.Now()
	it, err := s.classifier.Classify(ctx, query)
	s.observeStage(observability.StageClassify, start, stages)

	if err != nil {
		s.log.Warn("intent classification failed, using default intent", "error", err)
		return intent.Default()
	}
	it.Confidence = intent.Clamp(it.Confidence)
	return it
}

// instant serves a high-confidence query without retrieval. The answer
// cache is consulted; a miss still takes the instant route with an empty
// answer so the caller can fall back to a canned response.
func (s *Service) instant(ctx context.Context, req Request, it intent.Intent, started time.Time, stages map[string]int64) Response {
	resp := Response{
		Route:            router.RouteInstant,
		Intent:           it.Type,
		IntentConfidence: it.Confidence,
	}

	if s.answers != nil {
		if answer, ok := s.answers.Get(ctx, req.Query); ok {
			resp.Answer = answer
			resp.CacheHit = true
		}
	}

	resp.TotalLatencyMs = time.Since(started).Milliseconds()
	s.record(req, it, strategy.Strategy{}, resp, 0, stages)
	return resp
}

// retrieve embeds the query and executes the strategy, returning the fused
// candidate list and the pre-rerank top score. Embedding failure yields an
// empty fused set; routing then decides on confidence alone.
func (s *Service) retrieve(ctx context.Context, req Request, strat strategy.Strategy, stages map[string]int64) ([]fusion.Weighted, float32) {
	if strat.Empty() {
		return nil, 0
	}

	vector, ok := s.embed(ctx, req.Query, stages)
	if !ok {
		return nil, 0
	}

	start := time.Now()
	byNamespace := s.executor.Execute(ctx, strat, func(ctx context.Context, ns namespace.Namespace, topK int) ([]retrieval.Result, error) {
		results, err := s.searcher.Search(ctx, ns, vector, topK)
		if err != nil && s.metrics != nil {
			s.metrics.NamespaceSearchErrors.WithLabelValues(string(ns.Type())).Inc()
		}
		return results, err
	})
	s.observeStage(observability.StageRetrieve, start, stages)

	start = time.Now()
	topK := s.cfg.TopK
	if req.TopK > 0 {
		topK = req.TopK
	}
	fused := fusion.Fuse(byNamespace, strat, topK, s.cfg.Fusion)
	s.observeStage(observability.StageFuse, start, stages)

	if s.metrics != nil {
		s.metrics.FusedResults.Observe(float64(len(fused)))
	}

	// Routing uses the fused score; reranking only reorders the context.
	topScore := fusion.TopScore(fused)

	if s.cfg.EnableReranking && s.reranker != nil && len(fused) > 0 {
		start = time.Now()
		fused = rerank.Apply(ctx, s.reranker, req.Query, fused, s.cfg.RerankTopK, s.log)
		s.observeStage(observability.StageRerank, start, stages)
	}

	return fused, topScore
}

// embed returns the query vector, consulting the embedding cache first.
func (s *Service) embed(ctx context.Context, query string, stages map[string]int64) ([]float32, bool) {
	if s.embedCache != nil {
		if vector, ok := s.embedCache.Get(query); ok {
			return vector, true
		}
	}

	start := time.Now()
	vector, err := s.embedder.Embed(ctx, query)
	s.observeStage(observability.StageEmbed, start, stages)

	if err != nil {
		s.log.Warn("query embedding failed, skipping retrieval", "error", err)
		return nil, false
	}

	if s.embedCache != nil {
		s.embedCache.Put(query, vector)
	}
	return vector, true
}

func (s *Service) generate(ctx context.Context, query string, fused []fusion.Weighted, stages map[string]int64) (string, error) {
	passages := make([]Passage, 0, len(fused))
	for _, w := range fused {
		title, _ := w.Metadata[retrieval.MetaTitle].(string)
		passages = append(passages, Passage{
			Title:   title,
			Content: w.Content(),
		})
	}

	start := time.Now()
	answer, err := s.generator.Generate(ctx, query, passages)
	s.observeStage(observability.StageGenerate, start, stages)
	return answer, err
}

func (s *Service) observeStage(stage string, start time.Time, stages map[string]int64) {
	elapsed := time.Since(start)
	stages[stage] = elapsed.Milliseconds()
	if s.metrics != nil {
		s.metrics.StageLatency.WithLabelValues(stage).Observe(elapsed.Seconds())
	}
}

// record emits the query log and counters. Fire-and-forget; the recorder
// never blocks the response.
func (s *Service) record(req Request, it intent.Intent, strat strategy.Strategy, resp Response, resultCount int, stages map[string]int64) {
	if s.metrics != nil {
		s.metrics.QueriesTotal.WithLabelValues(string(resp.Route), string(it.Type)).Inc()
	}

	if s.recorder == nil {
		return
	}

	if s.metrics != nil {
		dropped := s.recorder.Dropped()
		if delta := dropped - s.droppedSeen.Swap(dropped); delta > 0 {
			s.metrics.QueryLogDropped.Add(float64(delta))
		}
	}

	namespaces := make([]string, len(strat.Namespaces))
	for i, ns := range strat.Namespaces {
		namespaces[i] = string(ns)
	}

	s.recorder.Record(observability.QueryLog{
		Timestamp:        time.Now().UTC(),
		Query:            req.Query,
		Intent:           string(it.Type),
		IntentConfidence: it.Confidence,
		Namespaces:       namespaces,
		ExecutionMode:    string(strat.Mode),
		Route:            string(resp.Route),
		FallbackReason:   string(resp.FallbackReason),
		ResultCount:      resultCount,
		TopScore:         resp.TopScore,
		StageLatencyMs:   stages,
		TotalLatencyMs:   resp.TotalLatencyMs,
		RerankApplied:    s.cfg.EnableReranking && s.reranker != nil,
		Successful:       resp.Route == router.RouteInstant || resp.Route == router.RouteRAG,
	})
}

func sources(fused []fusion.Weighted) []Source {
	out := make([]Source, 0, len(fused))
	for _, w := range fused {
		title, _ := w.Metadata[retrieval.MetaTitle].(string)
		docType, _ := w.Metadata[retrieval.MetaDocType].(string)
		out = append(out, Source{
			ID:        w.ID,
			Namespace: string(w.Result.Namespace),
			Title:     title,
			DocType:   docType,
			Score:     w.WeightedScore,
		})
	}
	return out
}

func clarifyMessage(it intent.Intent) string {
	switch it.Type {
	case intent.TypeDirectLookup, intent.TypeCalculation:
		return "Could you specify which period or document you are asking about?"
	case intent.TypeComparison:
		return "Could you specify which periods, people, or plans you want compared?"
	case intent.TypeAggregation:
		return "Could you specify which team or organization the rollup should cover?"
	default:
		return "Could you rephrase your question with a bit more detail?"
	}
}

func fallbackMessage(reason router.FallbackReason) string {
	if reason == router.ReasonPipelineTimeout {
		return "Answering took too long. Please try again."
	}
	return "Sorry, I could not understand the question well enough to answer it."
}
