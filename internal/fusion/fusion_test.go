package fusion

import (
	"reflect"
	"testing"

	"github.com/askdesk/askdesk/internal/namespace"
	"github.com/askdesk/askdesk/internal/retrieval"
	"github.com/askdesk/askdesk/internal/strategy"
)

func twoNamespaceStrategy() strategy.Strategy {
	return strategy.Strategy{
		Namespaces: []namespace.Namespace{"emp_E1", "org_O1"},
		Weights: map[namespace.Namespace]float32{
			"emp_E1": 1.5,
			"org_O1": 1.0,
		},
		Mode: strategy.ModeParallel,
	}
}

func hit(id string, score float32, meta map[string]any) retrieval.Result {
	return retrieval.Result{ID: id, Score: score, Metadata: meta}
}

func TestFuse_WeightedOrdering(t *testing.T) {
	strat := twoNamespaceStrategy()
	byNS := map[namespace.Namespace][]retrieval.Result{
		"emp_E1": {hit("e1", 0.5, nil)}, // weighted 0.75
		"org_O1": {hit("o1", 0.9, nil)}, // weighted 0.90
	}

	fused := Fuse(byNS, strat, 10, Config{})

	if len(fused) != 2 {
		t.Fatalf("len = %d, want 2", len(fused))
	}
	if fused[0].ID != "o1" || fused[1].ID != "e1" {
		t.Errorf("order = [%s %s], want [o1 e1]", fused[0].ID, fused[1].ID)
	}
	if fused[0].WeightedScore != 0.9 {
		t.Errorf("o1 weighted = %v, want 0.9", fused[0].WeightedScore)
	}
	if fused[1].OriginalScore != 0.5 {
		t.Errorf("e1 original = %v, want 0.5 (raw score must not be mutated)", fused[1].OriginalScore)
	}
	if fused[1].NamespaceType != namespace.TypeEmployee {
		t.Errorf("e1 namespace type = %s, want employee", fused[1].NamespaceType)
	}
}

func TestFuse_TieBreakByNamespacePriority(t *testing.T) {
	strat := strategy.Strategy{
		Namespaces: []namespace.Namespace{"emp_E1", "org_O1"},
		Weights: map[namespace.Namespace]float32{
			"emp_E1": 1.0,
			"org_O1": 1.0,
		},
	}

	// Identical weighted scores across namespaces; employee came first in
	// the strategy, so its results must rank first.
	byNS := map[namespace.Namespace][]retrieval.Result{
		"org_O1": {hit("o1", 0.8, nil), hit("o2", 0.8, nil)},
		"emp_E1": {hit("e1", 0.8, nil), hit("e2", 0.8, nil)},
	}

	fused := Fuse(byNS, strat, 10, Config{})

	wantOrder := []string{"e1", "e2", "o1", "o2"}
	var gotOrder []string
	for _, w := range fused {
		gotOrder = append(gotOrder, w.ID)
	}
	if !reflect.DeepEqual(gotOrder, wantOrder) {
		t.Errorf("tie order = %v, want %v", gotOrder, wantOrder)
	}
}

func TestFuse_Deterministic(t *testing.T) {
	strat := twoNamespaceStrategy()
	byNS := map[namespace.Namespace][]retrieval.Result{
		"emp_E1": {hit("e1", 0.6, nil), hit("e2", 0.4, nil)},
		"org_O1": {hit("o1", 0.9, nil), hit("o2", 0.6, nil)},
	}

	first := Fuse(byNS, strat, 10, Config{})
	for i := 0; i < 20; i++ {
		again := Fuse(byNS, strat, 10, Config{})
		if !reflect.DeepEqual(again, first) {
			t.Fatalf("run %d differs from first run", i)
		}
	}
}

func TestFuse_DedupByContentHash(t *testing.T) {
	strat := twoNamespaceStrategy()

	// Same contentHash in both namespaces; the org copy has the higher
	// weighted score (0.9 vs 0.5*1.5=0.75) and must survive.
	byNS := map[namespace.Namespace][]retrieval.Result{
		"emp_E1": {hit("e1", 0.5, map[string]any{retrieval.MetaContentHash: "dup"})},
		"org_O1": {hit("o1", 0.9, map[string]any{retrieval.MetaContentHash: "dup"})},
	}

	fused := Fuse(byNS, strat, 10, Config{})

	if len(fused) != 1 {
		t.Fatalf("len = %d, want 1 after dedup", len(fused))
	}
	if fused[0].ID != "o1" {
		t.Errorf("survivor = %s, want o1 (higher weighted score)", fused[0].ID)
	}
}

func TestFuse_DedupFallsBackToID(t *testing.T) {
	strat := twoNamespaceStrategy()
	byNS := map[namespace.Namespace][]retrieval.Result{
		"emp_E1": {hit("same-id", 0.9, nil)},
		"org_O1": {hit("same-id", 0.8, nil), hit("other", 0.1, nil)},
	}

	fused := Fuse(byNS, strat, 10, Config{})

	if len(fused) != 2 {
		t.Fatalf("len = %d, want 2", len(fused))
	}
}

func TestFuse_Truncation(t *testing.T) {
	strat := twoNamespaceStrategy()
	byNS := map[namespace.Namespace][]retrieval.Result{
		"emp_E1": {hit("e1", 0.9, nil), hit("e2", 0.8, nil), hit("e3", 0.7, nil)},
	}

	fused := Fuse(byNS, strat, 2, Config{})

	if len(fused) != 2 {
		t.Errorf("len = %d, want 2", len(fused))
	}
}

func TestFuse_EmptyInput(t *testing.T) {
	fused := Fuse(nil, twoNamespaceStrategy(), 10, Config{})
	if len(fused) != 0 {
		t.Errorf("len = %d, want 0", len(fused))
	}
	if TopScore(fused) != 0 {
		t.Errorf("TopScore(empty) = %v, want 0", TopScore(fused))
	}
	if AverageScore(fused) != 0 {
		t.Errorf("AverageScore(empty) = %v, want 0", AverageScore(fused))
	}
}

func TestFuse_RRFMode(t *testing.T) {
	strat := strategy.Strategy{
		Namespaces: []namespace.Namespace{"emp_E1"},
		Weights:    map[namespace.Namespace]float32{"emp_E1": 1.0},
	}
	byNS := map[namespace.Namespace][]retrieval.Result{
		"emp_E1": {hit("e1", 0.1, nil), hit("e2", 0.9, nil)},
	}

	fused := Fuse(byNS, strat, 10, Config{RRFK: 60})

	// Rank-based scoring ignores raw scores: e1 holds rank 0.
	if fused[0].ID != "e1" {
		t.Errorf("first = %s, want e1 under rank-based scoring", fused[0].ID)
	}
	want := float32(1.0) / 61
	if fused[0].WeightedScore != want {
		t.Errorf("score = %v, want %v", fused[0].WeightedScore, want)
	}
}

func TestScores(t *testing.T) {
	fused := []Weighted{
		{WeightedScore: 0.9},
		{WeightedScore: 0.5},
		{WeightedScore: 0.1},
	}
	if TopScore(fused) != 0.9 {
		t.Errorf("TopScore = %v, want 0.9", TopScore(fused))
	}
	if AverageScore(fused) != 0.5 {
		t.Errorf("AverageScore = %v, want 0.5", AverageScore(fused))
	}
}
