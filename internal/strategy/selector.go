// Package strategy turns a classified intent and the resolved namespaces into
// a concrete search plan.
package strategy

import (
	"github.com/askdesk/askdesk/internal/intent"
	"github.com/askdesk/askdesk/internal/namespace"
)

// ExecutionMode controls how namespace searches are issued.
type ExecutionMode string

const (
	// ModeParallel fans searches out concurrently and joins on all of them.
	ModeParallel ExecutionMode = "parallel"

	// ModeSequential walks namespaces in order and stops early once enough
	// results have accumulated.
	ModeSequential ExecutionMode = "sequential"
)

// Strategy is the per-query search plan. Every namespace in Namespaces has a
// strictly positive entry in Weights.
type Strategy struct {
	// Namespaces is the ordered namespace list; order is the fusion
	// tie-break priority.
	Namespaces []namespace.Namespace

	// Weights maps each namespace to its score multiplier.
	Weights map[namespace.Namespace]float32

	// Mode selects parallel or sequential execution.
	Mode ExecutionMode

	// MinResultsBeforeStop is the sequential early-exit threshold.
	MinResultsBeforeStop int
}

// Weight returns the multiplier for a namespace, defaulting to 1.
func (s Strategy) Weight(ns namespace.Namespace) float32 {
	if w, ok := s.Weights[ns]; ok {
		return w
	}
	return 1
}

// Empty reports whether the strategy selects no namespaces. Executors treat
// an empty strategy as "no results", not an error.
func (s Strategy) Empty() bool {
	return len(s.Namespaces) == 0
}

// plan is the per-intent priority table entry.
type plan struct {
	// priority is the namespace type walk order.
	priority []namespace.Type

	// overrides replaces resolver base weights for matching types.
	overrides map[namespace.Type]float32

	// includePublic appends the public namespace when the resolver produced
	// one. Calculations never blend in public data: mixing community numbers
	// into a personal aggregate would corrupt it.
	includePublic bool

	// sequential forces sequential execution regardless of namespace count.
	sequential bool
}

// planFor returns the plan for an intent type. The switch is exhaustive over
// intent.Types; adding an intent without a case here fails the selector tests.
func planFor(t intent.Type) plan {
	switch t {
	case intent.TypeDirectLookup:
		return plan{
			priority:      []namespace.Type{namespace.TypeEmployee, namespace.TypeOrganization, namespace.TypePublic},
			overrides:     map[namespace.Type]float32{namespace.TypePublic: 0.7},
			includePublic: true,
		}
	case intent.TypeCalculation:
		return plan{
			priority:      []namespace.Type{namespace.TypeEmployee},
			overrides:     map[namespace.Type]float32{namespace.TypeEmployee: 1.0},
			includePublic: false,
			sequential:    true,
		}
	case intent.TypeComparison:
		return plan{
			priority: []namespace.Type{namespace.TypeEmployee, namespace.TypeOrganization},
			overrides: map[namespace.Type]float32{
				namespace.TypeEmployee:     1.3,
				namespace.TypeOrganization: 1.0,
			},
			includePublic: true,
		}
	case intent.TypeAggregation:
		return plan{
			priority: []namespace.Type{namespace.TypeOrganization, namespace.TypeEmployee},
			overrides: map[namespace.Type]float32{
				namespace.TypeOrganization: 1.2,
				namespace.TypeEmployee:     1.0,
			},
			includePublic: true,
		}
	default: // intent.TypeGeneralQA and anything unclassifiable
		return plan{
			priority: []namespace.Type{namespace.TypePublic, namespace.TypeEmployee, namespace.TypeOrganization},
			overrides: map[namespace.Type]float32{
				namespace.TypePublic:   1.2,
				namespace.TypeEmployee: 0.8,
			},
			includePublic: true,
		}
	}
}

// Selector builds search strategies.
type Selector struct {
	cfg Config
}

// Config configures strategy selection.
type Config struct {
	// MinResultsBeforeStop is the sequential early-exit threshold applied to
	// every strategy. Callers on low-latency paths may lower it.
	MinResultsBeforeStop int
}

// DefaultConfig returns sensible selection defaults.
func DefaultConfig() Config {
	return Config{
		MinResultsBeforeStop: 3,
	}
}

// NewSelector creates a strategy selector.
func NewSelector(cfg Config) *Selector {
	if cfg.MinResultsBeforeStop <= 0 {
		cfg = DefaultConfig()
	}
	return &Selector{cfg: cfg}
}

// Select builds the search strategy for an intent over the resolved
// namespaces. Namespace types the resolver did not produce are silently
// skipped. A strategy may come back empty; executors treat that as a search
// with no results.
func (s *Selector) Select(it intent.Intent, resolved []namespace.Resolved) Strategy {
	p := planFor(it.Type)

	byType := make(map[namespace.Type]namespace.Resolved, len(resolved))
	for _, r := range resolved {
		byType[r.Type] = r
	}

	strat := Strategy{
		Weights:              make(map[namespace.Namespace]float32),
		Mode:                 ModeParallel,
		MinResultsBeforeStop: s.cfg.MinResultsBeforeStop,
	}

	for _, typ := range p.priority {
		r, ok := byType[typ]
		if !ok {
			continue
		}
		strat.Namespaces = append(strat.Namespaces, r.Namespace)
		strat.Weights[r.Namespace] = weightFor(p, typ, r.BaseWeight)
	}

	// Append public if the plan allows it and the priority walk didn't
	// already include it.
	if p.includePublic {
		if r, ok := byType[namespace.TypePublic]; ok {
			if _, present := strat.Weights[r.Namespace]; !present {
				strat.Namespaces = append(strat.Namespaces, r.Namespace)
				strat.Weights[r.Namespace] = weightFor(p, namespace.TypePublic, r.BaseWeight)
			}
		}
	}

	if p.sequential || len(strat.Namespaces) == 1 {
		strat.Mode = ModeSequential
	}

	return strat
}

func weightFor(p plan, typ namespace.Type, base float32) float32 {
	if w, ok := p.overrides[typ]; ok {
		return w
	}
	return base
}
