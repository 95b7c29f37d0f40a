package nodes

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/parcelflow/internal/node"
)

// ErrUnknownKind is returned when a workflow names a kind that is not
// registered.
var ErrUnknownKind = errors.New("unknown node kind")

// Constructor builds one node of a kind.
type Constructor func(id string, p Params) (node.Node, error)

// Kind describes a registered node kind.
type Kind struct {
	Name        string
	Description string
	Params      []string
	New         Constructor
}

// Registry maps kind names to constructors.
type Registry struct {
	kinds map[string]Kind
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]Kind)}
}

// Default returns a registry holding every built-in kind.
func Default() *Registry {
	r := NewRegistry()
	for _, k := range builtins() {
		if err := r.Register(k); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a kind. Names must be unique.
func (r *Registry) Register(k Kind) error {
	if k.Name == "" || k.New == nil {
		return fmt.Errorf("register kind %q: name and constructor are required", k.Name)
	}
	if _, dup := r.kinds[k.Name]; dup {
		return fmt.Errorf("register kind %q: already registered", k.Name)
	}
	r.kinds[k.Name] = k
	return nil
}

// Lookup returns the kind registered under name.
func (r *Registry) Lookup(name string) (Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// Build constructs a node of the named kind. Params outside the kind's
// declared list are rejected.
func (r *Registry) Build(kind, id string, p Params) (node.Node, error) {
	k, ok := r.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if err := p.Only(k.Params...); err != nil {
		return nil, fmt.Errorf("node %s (%s): %w", id, kind, err)
	}
	n, err := k.New(id, p)
	if err != nil {
		return nil, fmt.Errorf("node %s (%s): %w", id, kind, err)
	}
	return n, nil
}

// Kinds returns the registered kinds sorted by name.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.kinds))
	for _, k := range r.kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
