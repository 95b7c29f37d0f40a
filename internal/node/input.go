package node

import (
	"fmt"

	"github.com/roach88/parcelflow/internal/parcel"
)

// Input is the read-only view a node receives for one invocation.
//
// It wraps the state finalized before the current round. Names passed to Get
// and Value are base names and are resolved according to the invocation
// mode; Lookup takes a fully qualified name and bypasses resolution.
type Input struct {
	state   *parcel.Set
	index   int
	indexed bool
}

// NewInput creates a scalar-mode view over state.
func NewInput(state *parcel.Set) *Input {
	return &Input{state: state}
}

// NewIndexedInput creates an indexed-mode view over state for index i.
func NewIndexedInput(state *parcel.Set, i int) *Input {
	return &Input{state: state, index: i, indexed: true}
}

// Index returns the invocation index, or false in scalar mode.
func (in *Input) Index() (int, bool) {
	return in.index, in.indexed
}

// Resolve maps a base name to the concrete name this invocation reads.
//
// Scalar mode always resolves to the bare name. Indexed mode resolves to
// base[i] when any base[k] is bound, otherwise to the bare name.
func (in *Input) Resolve(base string) parcel.Name {
	if in.indexed && in.state.HasFamily(base) {
		return parcel.At(base, in.index)
	}
	return parcel.Bare(base)
}

// Has reports whether base resolves to a bound parcel.
func (in *Input) Has(base string) bool {
	return in.state.Has(in.Resolve(base))
}

// Get returns the parcel base resolves to.
func (in *Input) Get(base string) (parcel.Parcel, bool) {
	return in.state.Lookup(in.Resolve(base))
}

// Value returns the value base resolves to.
func (in *Input) Value(base string) (any, bool) {
	p, ok := in.Get(base)
	if !ok {
		return nil, false
	}
	return p.Value(), true
}

// MustValue returns the value base resolves to and panics if it is absent.
// The engine only invokes a node once all of its requirements resolve, so
// this is safe for declared requirements.
func (in *Input) MustValue(base string) any {
	v, ok := in.Value(base)
	if !ok {
		panic(fmt.Sprintf("node input: %s is not available", in.Resolve(base)))
	}
	return v
}

// Lookup returns the parcel bound to an exact name, without resolution.
func (in *Input) Lookup(name parcel.Name) (parcel.Parcel, bool) {
	return in.state.Lookup(name)
}

// Indices returns the bound indices of a family, ascending.
func (in *Input) Indices(base string) []int {
	return in.state.Indices(base)
}

// Collect reads family[0..n-1] where n is the value bound to the bare count
// name, in index order. A missing count, an invalid count or a missing index
// is an error.
func (in *Input) Collect(family, count string) ([]any, error) {
	n, err := CountOf(in.state, count)
	if err != nil {
		return nil, err
	}

	out := make([]any, n)
	for i := 0; i < n; i++ {
		p, ok := in.state.Lookup(parcel.At(family, i))
		if !ok {
			return nil, fmt.Errorf("collect %s: index %d of %d is missing", family, i, n)
		}
		out[i] = p.Value()
	}
	return out, nil
}

// CountOf reads the bare count parcel and interprets it as a family size.
func CountOf(state *parcel.Set, count string) (int, error) {
	p, ok := state.Lookup(parcel.Bare(count))
	if !ok {
		return 0, fmt.Errorf("count %s is not bound", count)
	}
	n, err := parcel.AsCount(p.Value())
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", count, err)
	}
	return n, nil
}
