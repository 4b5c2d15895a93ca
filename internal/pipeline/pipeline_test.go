package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/askdesk/askdesk/internal/intent"
	"github.com/askdesk/askdesk/internal/namespace"
	"github.com/askdesk/askdesk/internal/pkg/errors"
	"github.com/askdesk/askdesk/internal/pkg/logger"
	"github.com/askdesk/askdesk/internal/retrieval"
	"github.com/askdesk/askdesk/internal/router"
	"github.com/askdesk/askdesk/internal/strategy"
)

type fakeClassifier struct {
	it  intent.Intent
	err error
}

func (f *fakeClassifier) Classify(ctx context.Context, query string) (intent.Intent, error) {
	return f.it, f.err
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

type fakeSearcher struct {
	mu       sync.Mutex
	byNS     map[namespace.Namespace][]retrieval.Result
	searched []namespace.Namespace
}

func (f *fakeSearcher) Search(ctx context.Context, ns namespace.Namespace, vector []float32, topK int) ([]retrieval.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = append(f.searched, ns)
	return f.byNS[ns], nil
}

func (f *fakeSearcher) searchedSet() map[namespace.Namespace]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[namespace.Namespace]bool, len(f.searched))
	for _, ns := range f.searched {
		out[ns] = true
	}
	return out
}

type fakeGenerator struct {
	answer   string
	err      error
	calls    int
	passages []Passage
}

func (f *fakeGenerator) Generate(ctx context.Context, query string, passages []Passage) (string, error) {
	f.calls++
	f.passages = passages
	return f.answer, f.err
}

type fakeAnswers struct {
	mu   sync.Mutex
	data map[string]string
	puts int
}

func (f *fakeAnswers) Get(ctx context.Context, query string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.data[query]
	return a, ok
}

func (f *fakeAnswers) Put(ctx context.Context, query, answer string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = make(map[string]string)
	}
	f.data[query] = answer
	f.puts++
}

func result(id string, score float32, content string) retrieval.Result {
	return retrieval.Result{
		ID:    id,
		Score: score,
		Metadata: map[string]any{
			retrieval.MetaContent:     content,
			retrieval.MetaContentHash: id,
		},
	}
}

type testDeps struct {
	classifier *fakeClassifier
	embedder   *fakeEmbedder
	searcher   *fakeSearcher
	generator  *fakeGenerator
	answers    *fakeAnswers
}

func newTestService(d testDeps) *Service {
	log := logger.New("error", "text")

	return NewService(DefaultConfig(), Deps{
		Classifier: d.classifier,
		Embedder:   d.embedder,
		Searcher:   d.searcher,
		Generator:  d.generator,
		Answers:    d.answers,
		Selector:   strategy.NewSelector(strategy.DefaultConfig()),
		Executor:   retrieval.NewExecutor(retrieval.DefaultConfig(), log),
	}, log)
}

func TestAnswer_RAGHappyPath(t *testing.T) {
	emp := namespace.Employee("E100")
	searcher := &fakeSearcher{byNS: map[namespace.Namespace][]retrieval.Result{
		emp:              {result("e1", 0.9, "commission 1,200,000")},
		namespace.Public: {result("p1", 0.95, "general policy")},
	}}
	gen := &fakeGenerator{answer: "Your June commission was 1,200,000."}
	answers := &fakeAnswers{}

	svc := newTestService(testDeps{
		classifier: &fakeClassifier{it: intent.Intent{Type: intent.TypeDirectLookup, Confidence: 0.85}},
		embedder:   &fakeEmbedder{vec: []float32{0.1, 0.2}},
		searcher:   searcher,
		generator:  gen,
		answers:    answers,
	})

	resp, err := svc.Answer(context.Background(), Request{Query: "what was my June commission", EmployeeID: "E100"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if resp.Route != router.RouteRAG {
		t.Fatalf("Route = %q, want rag", resp.Route)
	}
	if resp.Answer != "Your June commission was 1,200,000." {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if len(resp.Sources) == 0 {
		t.Fatal("expected sources on a rag answer")
	}
	// emp weight 1.5 beats public 0.7 for direct_lookup despite the lower
	// raw score: 0.9*1.5 > 0.95*0.7.
	if resp.Sources[0].ID != "e1" {
		t.Errorf("top source = %q, want e1", resp.Sources[0].ID)
	}
	if want := float32(0.9) * float32(1.5); resp.TopScore != want {
		t.Errorf("TopScore = %v, want %v", resp.TopScore, want)
	}
	if answers.puts != 1 {
		t.Errorf("answer cache puts = %d, want 1", answers.puts)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
}

func TestAnswer_CalculationNeverTouchesPublic(t *testing.T) {
	emp := namespace.Employee("E100")
	searcher := &fakeSearcher{byNS: map[namespace.Namespace][]retrieval.Result{
		emp: {
			result("e1", 0.9, "jan"), result("e2", 0.8, "feb"), result("e3", 0.7, "mar"),
		},
		namespace.Public: {result("p1", 0.99, "noise")},
	}}

	svc := newTestService(testDeps{
		classifier: &fakeClassifier{it: intent.Intent{Type: intent.TypeCalculation, Confidence: 0.9}},
		embedder:   &fakeEmbedder{vec: []float32{0.1}},
		searcher:   searcher,
		generator:  &fakeGenerator{answer: "Total: 3,600,000."},
	})

	resp, err := svc.Answer(context.Background(), Request{Query: "sum my commissions for Q1", EmployeeID: "E100", OrganizationID: "O1"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if resp.Route != router.RouteRAG {
		t.Fatalf("Route = %q, want rag", resp.Route)
	}
	searched := searcher.searchedSet()
	if searched[namespace.Public] {
		t.Error("calculation query searched the public namespace")
	}
	if !searched[emp] {
		t.Error("calculation query skipped the employee namespace")
	}
	for _, s := range resp.Sources {
		if s.Namespace == string(namespace.Public) {
			t.Errorf("public result %q leaked into a calculation answer", s.ID)
		}
	}
}

func TestAnswer_InstantSkipsRetrieval(t *testing.T) {
	searcher := &fakeSearcher{}
	embedder := &fakeEmbedder{vec: []float32{0.1}}
	answers := &fakeAnswers{data: map[string]string{"payday?": "The 25th of each month."}}

	svc := newTestService(testDeps{
		classifier: &fakeClassifier{it: intent.Intent{Type: intent.TypeDirectLookup, Confidence: 0.97}},
		embedder:   embedder,
		searcher:   searcher,
		generator:  &fakeGenerator{},
		answers:    answers,
	})

	resp, err := svc.Answer(context.Background(), Request{Query: "payday?", EmployeeID: "E100"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if resp.Route != router.RouteInstant {
		t.Fatalf("Route = %q, want instant", resp.Route)
	}
	if !resp.CacheHit || resp.Answer != "The 25th of each month." {
		t.Errorf("Answer = %q, CacheHit = %v", resp.Answer, resp.CacheHit)
	}
	if embedder.calls != 0 {
		t.Error("instant route called the embedder")
	}
	if len(searcher.searchedSet()) != 0 {
		t.Error("instant route touched the vector store")
	}
}

func TestAnswer_InstantCacheMissStillInstant(t *testing.T) {
	svc := newTestService(testDeps{
		classifier: &fakeClassifier{it: intent.Intent{Type: intent.TypeDirectLookup, Confidence: 0.96}},
		embedder:   &fakeEmbedder{vec: []float32{0.1}},
		searcher:   &fakeSearcher{},
		generator:  &fakeGenerator{},
		answers:    &fakeAnswers{},
	})

	resp, err := svc.Answer(context.Background(), Request{Query: "payday?"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if resp.Route != router.RouteInstant {
		t.Errorf("Route = %q, want instant", resp.Route)
	}
	if resp.CacheHit || resp.Answer != "" {
		t.Errorf("cache miss should yield empty answer, got %q", resp.Answer)
	}
}

func TestAnswer_LowConfidenceFallsBackDespitePerfectScore(t *testing.T) {
	searcher := &fakeSearcher{byNS: map[namespace.Namespace][]retrieval.Result{
		namespace.Public: {result("p1", 1.0, "perfect match")},
	}}
	gen := &fakeGenerator{answer: "should never be used"}

	svc := newTestService(testDeps{
		classifier: &fakeClassifier{it: intent.Intent{Type: intent.TypeGeneralQA, Confidence: 0.2}},
		embedder:   &fakeEmbedder{vec: []float32{0.1}},
		searcher:   searcher,
		generator:  gen,
	})

	resp, err := svc.Answer(context.Background(), Request{Query: "???"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if resp.Route != router.RouteFallback {
		t.Fatalf("Route = %q, want fallback", resp.Route)
	}
	if resp.FallbackReason != router.ReasonLowConfidence {
		t.Errorf("FallbackReason = %q, want low_confidence", resp.FallbackReason)
	}
	if gen.calls != 0 {
		t.Error("fallback route called the generator")
	}
}

func TestAnswer_ClarifyWhenScoreTooLow(t *testing.T) {
	searcher := &fakeSearcher{byNS: map[namespace.Namespace][]retrieval.Result{
		namespace.Public: {result("p1", 0.2, "weak match")},
	}}

	svc := newTestService(testDeps{
		classifier: &fakeClassifier{it: intent.Intent{Type: intent.TypeComparison, Confidence: 0.8}},
		embedder:   &fakeEmbedder{vec: []float32{0.1}},
		searcher:   searcher,
		generator:  &fakeGenerator{},
	})

	resp, err := svc.Answer(context.Background(), Request{Query: "compare them"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	// 0.2 * 0.8 public weight is below the 0.35 score floor.
	if resp.Route != router.RouteClarify {
		t.Fatalf("Route = %q, want clarify", resp.Route)
	}
	if resp.Answer == "" {
		t.Error("clarify route returned no question")
	}
}

func TestAnswer_GenerationFailureFallsBack(t *testing.T) {
	searcher := &fakeSearcher{byNS: map[namespace.Namespace][]retrieval.Result{
		namespace.Public: {result("p1", 0.9, "match")},
	}}
	answers := &fakeAnswers{}

	svc := newTestService(testDeps{
		classifier: &fakeClassifier{it: intent.Intent{Type: intent.TypeGeneralQA, Confidence: 0.8}},
		embedder:   &fakeEmbedder{vec: []float32{0.1}},
		searcher:   searcher,
		generator:  &fakeGenerator{err: errors.New(errors.CodeGeneration, "model unavailable")},
		answers:    answers,
	})

	resp, err := svc.Answer(context.Background(), Request{Query: "what is the leave policy"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if resp.Route != router.RouteFallback {
		t.Fatalf("Route = %q, want fallback", resp.Route)
	}
	if resp.FallbackReason != router.ReasonGenerationFailed {
		t.Errorf("FallbackReason = %q, want generation_failed", resp.FallbackReason)
	}
	if answers.puts != 0 {
		t.Error("failed generation must not be cached")
	}
}

func TestAnswer_ClassifierFailureUsesDefaultIntent(t *testing.T) {
	svc := newTestService(testDeps{
		classifier: &fakeClassifier{err: errors.New(errors.CodeClassifier, "model down")},
		embedder:   &fakeEmbedder{vec: []float32{0.1}},
		searcher:   &fakeSearcher{},
		generator:  &fakeGenerator{},
	})

	resp, err := svc.Answer(context.Background(), Request{Query: "anything"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if resp.Intent != intent.TypeGeneralQA {
		t.Errorf("Intent = %q, want general_qa default", resp.Intent)
	}
	// Default intent carries zero confidence, which lands on fallback.
	if resp.Route != router.RouteFallback {
		t.Errorf("Route = %q, want fallback", resp.Route)
	}
	if resp.FallbackReason != router.ReasonLowConfidence {
		t.Errorf("FallbackReason = %q, want low_confidence", resp.FallbackReason)
	}
}

func TestAnswer_EmbeddingFailureSkipsSearch(t *testing.T) {
	searcher := &fakeSearcher{}

	svc := newTestService(testDeps{
		classifier: &fakeClassifier{it: intent.Intent{Type: intent.TypeDirectLookup, Confidence: 0.8}},
		embedder:   &fakeEmbedder{err: errors.New(errors.CodeEmbedding, "endpoint down")},
		searcher:   searcher,
		generator:  &fakeGenerator{},
	})

	resp, err := svc.Answer(context.Background(), Request{Query: "my June commission", EmployeeID: "E100"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if len(searcher.searchedSet()) != 0 {
		t.Error("search ran without a query vector")
	}
	// No results means top score 0, below the rag floor; confidence 0.8
	// clears the clarify bar.
	if resp.Route != router.RouteClarify {
		t.Errorf("Route = %q, want clarify", resp.Route)
	}
}

type slowEmbedder struct {
	delay time.Duration
}

func (f *slowEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
	}
	return []float32{0.1}, nil
}

func TestAnswer_PipelineTimeoutResolvesFallback(t *testing.T) {
	searcher := &fakeSearcher{byNS: map[namespace.Namespace][]retrieval.Result{
		namespace.Public: {result("p1", 0.9, "match")},
	}}
	log := logger.New("error", "text")

	cfg := DefaultConfig()
	cfg.TotalTimeout = 20 * time.Millisecond

	svc := NewService(cfg, Deps{
		Classifier: &fakeClassifier{it: intent.Intent{Type: intent.TypeGeneralQA, Confidence: 0.8}},
		Embedder:   &slowEmbedder{delay: 100 * time.Millisecond},
		Searcher:   searcher,
		Generator:  &fakeGenerator{answer: "too late"},
		Selector:   strategy.NewSelector(strategy.DefaultConfig()),
		Executor:   retrieval.NewExecutor(retrieval.DefaultConfig(), log),
	}, log)

	resp, err := svc.Answer(context.Background(), Request{Query: "slow one"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if resp.Route != router.RouteFallback {
		t.Fatalf("Route = %q, want fallback", resp.Route)
	}
	if resp.FallbackReason != router.ReasonPipelineTimeout {
		t.Errorf("FallbackReason = %q, want pipeline_timeout", resp.FallbackReason)
	}
}

func TestAnswer_EmptyQueryIsValidationError(t *testing.T) {
	svc := newTestService(testDeps{
		classifier: &fakeClassifier{},
		embedder:   &fakeEmbedder{},
		searcher:   &fakeSearcher{},
		generator:  &fakeGenerator{},
	})

	if _, err := svc.Answer(context.Background(), Request{}); !errors.IsValidation(err) {
		t.Errorf("Answer() error = %v, want validation error", err)
	}
}

func TestAnswer_RepeatAnswerServedFromCache(t *testing.T) {
	searcher := &fakeSearcher{byNS: map[namespace.Namespace][]retrieval.Result{
		namespace.Public: {result("p1", 0.9, "policy text")},
	}}
	answers := &fakeAnswers{}

	ragSvc := newTestService(testDeps{
		classifier: &fakeClassifier{it: intent.Intent{Type: intent.TypeGeneralQA, Confidence: 0.8}},
		embedder:   &fakeEmbedder{vec: []float32{0.1}},
		searcher:   searcher,
		generator:  &fakeGenerator{answer: "25 days of leave."},
		answers:    answers,
	})

	if _, err := ragSvc.Answer(context.Background(), Request{Query: "how much leave do I get"}); err != nil {
		t.Fatalf("first Answer() error = %v", err)
	}

	// Same question again, now classified with instant-level confidence.
	instSvc := newTestService(testDeps{
		classifier: &fakeClassifier{it: intent.Intent{Type: intent.TypeGeneralQA, Confidence: 0.96}},
		embedder:   &fakeEmbedder{vec: []float32{0.1}},
		searcher:   &fakeSearcher{},
		generator:  &fakeGenerator{},
		answers:    answers,
	})

	resp, err := instSvc.Answer(context.Background(), Request{Query: "how much leave do I get"})
	if err != nil {
		t.Fatalf("second Answer() error = %v", err)
	}
	if resp.Route != router.RouteInstant || resp.Answer != "25 days of leave." {
		t.Errorf("Route = %q, Answer = %q", resp.Route, resp.Answer)
	}
}
