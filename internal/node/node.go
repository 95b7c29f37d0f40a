package node

import (
	"context"
	"slices"
	"strings"

	"github.com/roach88/parcelflow/internal/parcel"
)

// Node is a unit of work scheduled by data availability.
//
// Requires lists base names with AND semantics. Outputs is informational
// only; the engine never schedules from it. Implementations must be safe to
// invoke repeatedly, once per eligible index, and must treat the Input as
// read-only.
type Node interface {
	ID() string
	Requires() []string
	Outputs() []string
	Run(ctx context.Context, in *Input) (map[string]any, error)
}

// Gather declares that a node reassembles the indexed family Family, whose
// size is published as the bare parcel Count.
type Gather struct {
	Family string
	Count  string
}

// Gatherer is implemented by collecting nodes.
//
// A node with at least one Gather is invoked in scalar mode only. It becomes
// eligible once each Count is bound to a valid size n and Family[0..n-1] are
// all bound; its other requirements must be bound bare.
type Gatherer interface {
	Node
	Gathers() []Gather
}

// GathersOf returns the gathers declared by n, or nil.
func GathersOf(n Node) []Gather {
	if g, ok := n.(Gatherer); ok {
		return g.Gathers()
	}
	return nil
}

// IsCollector reports whether n is invoked in scalar mode only: it declares
// a Gather, or one of its requirements is a count name such as user_count.
func IsCollector(n Node) bool {
	return len(GathersOf(n)) > 0 || slices.ContainsFunc(n.Requires(), parcel.IsCountName)
}

// GathersIn resolves the gathers of n against state.
//
// Declared gathers are returned as is. Otherwise each required count X_count
// gathers X when X is also required. A count with no such partner gathers
// every other requirement that is not bound bare, so a node requiring
// {processed, user_count} collects processed[0..user_count-1].
func GathersIn(state *parcel.Set, n Node) []Gather {
	if declared := GathersOf(n); len(declared) > 0 {
		return declared
	}

	requires := n.Requires()
	var out []Gather
	var unpaired []string
	paired := make(map[string]bool)
	for _, req := range requires {
		if !parcel.IsCountName(req) {
			continue
		}
		family := strings.TrimSuffix(req, parcel.CountSuffix)
		if slices.Contains(requires, family) {
			out = append(out, Gather{Family: family, Count: req})
			paired[family] = true
			continue
		}
		unpaired = append(unpaired, req)
	}
	if len(unpaired) == 0 {
		return out
	}

	for _, req := range requires {
		if parcel.IsCountName(req) || paired[req] || state.Has(parcel.Bare(req)) {
			continue
		}
		out = append(out, Gather{Family: req, Count: unpaired[0]})
	}
	return out
}

// RunFunc is the body of a Func node.
type RunFunc func(ctx context.Context, in *Input) (map[string]any, error)

// Func adapts a RunFunc to the Node interface.
type Func struct {
	id       string
	requires []string
	outputs  []string
	gathers  []Gather
	run      RunFunc
}

// Option configures a Func.
type Option func(*Func)

// WithGather marks the node as collecting family, sized by count.
// Both names are added to Requires if absent.
func WithGather(family, count string) Option {
	return func(f *Func) {
		f.gathers = append(f.gathers, Gather{Family: family, Count: count})
		for _, name := range []string{family, count} {
			if !slices.Contains(f.requires, name) {
				f.requires = append(f.requires, name)
			}
		}
	}
}

// New creates a Func node. The requires and outputs slices are copied.
func New(id string, requires, outputs []string, run RunFunc, opts ...Option) *Func {
	f := &Func{
		id:       id,
		requires: append([]string(nil), requires...),
		outputs:  append([]string(nil), outputs...),
		run:      run,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Func) ID() string         { return f.id }
func (f *Func) Requires() []string { return f.requires }
func (f *Func) Outputs() []string  { return f.outputs }
func (f *Func) Gathers() []Gather  { return f.gathers }

// Run invokes the wrapped function.
func (f *Func) Run(ctx context.Context, in *Input) (map[string]any, error) {
	return f.run(ctx, in)
}

func (f *Func) String() string {
	return "Func(" + f.id + ")"
}
