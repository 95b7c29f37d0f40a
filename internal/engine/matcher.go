package engine

import (
	"sort"

	"github.com/roach88/parcelflow/internal/node"
	"github.com/roach88/parcelflow/internal/parcel"
)

// invocation is one eligible (node, index) pair found by scan.
type invocation struct {
	node    node.Node
	order   int
	index   int
	indexed bool
}

func (inv invocation) record() ExecutionRecord {
	if inv.indexed {
		return indexedRecord(inv.node.ID(), inv.index)
	}
	return scalarRecord(inv.node.ID())
}

func (inv invocation) input(state *parcel.Set) *node.Input {
	if inv.indexed {
		return node.NewIndexedInput(state, inv.index)
	}
	return node.NewInput(state)
}

// scan collects every eligible pair against the current state.
//
// Results are ordered by node registration order; within a node the scalar
// invocation comes first, then indices ascending. Pairs already in the
// ledger are skipped.
func (r *run) scan() []invocation {
	var out []invocation
	for order, n := range r.nodes {
		id := n.ID()

		if node.IsCollector(n) {
			if !r.ledger.Done(scalarRecord(id)) && gatherReady(r.state, n, node.GathersIn(r.state, n)) {
				out = append(out, invocation{node: n, order: order})
			}
			continue
		}

		if !r.ledger.Done(scalarRecord(id)) && scalarReady(r.state, n.Requires()) {
			out = append(out, invocation{node: n, order: order})
		}

		for _, i := range candidateIndices(r.state, n.Requires()) {
			if r.ledger.Done(indexedRecord(id, i)) {
				continue
			}
			if indexedReady(r.state, n.Requires(), i) {
				out = append(out, invocation{node: n, order: order, index: i, indexed: true})
			}
		}
	}
	return out
}

// scalarReady reports whether every requirement is bound bare.
func scalarReady(state *parcel.Set, requires []string) bool {
	for _, req := range requires {
		if !state.Has(parcel.Bare(req)) {
			return false
		}
	}
	return true
}

// candidateIndices is the union of the bound indices of every required
// family, ascending. A node with no family among its requirements has no
// candidates.
func candidateIndices(state *parcel.Set, requires []string) []int {
	seen := make(map[int]struct{})
	for _, req := range requires {
		for _, i := range state.Indices(req) {
			seen[i] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// indexedReady reports whether every requirement resolves at index i.
func indexedReady(state *parcel.Set, requires []string, i int) bool {
	in := node.NewIndexedInput(state, i)
	for _, req := range requires {
		if !in.Has(req) {
			return false
		}
	}
	return true
}

// gatherReady reports whether a gathering node can run: every other
// requirement is bound bare, and every gathered family is complete up to its
// count. A count of zero is complete.
func gatherReady(state *parcel.Set, n node.Node, gathers []node.Gather) bool {
	gathered := make(map[string]struct{}, len(gathers))
	for _, g := range gathers {
		gathered[g.Family] = struct{}{}

		count, err := node.CountOf(state, g.Count)
		if err != nil {
			return false
		}
		for i := 0; i < count; i++ {
			if !state.Has(parcel.At(g.Family, i)) {
				return false
			}
		}
	}

	for _, req := range n.Requires() {
		if _, ok := gathered[req]; ok {
			continue
		}
		if !state.Has(parcel.Bare(req)) {
			return false
		}
	}
	return true
}
