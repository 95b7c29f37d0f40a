package catalog

import (
	"fmt"

	"github.com/roach88/parcelflow/internal/node"
	"github.com/roach88/parcelflow/internal/nodes"
)

// Build instantiates the workflow's nodes, in declaration order, from reg.
func (w *Workflow) Build(reg *nodes.Registry) ([]node.Node, error) {
	out := make([]node.Node, 0, len(w.Nodes))
	for _, def := range w.Nodes {
		n, err := reg.Build(def.Kind, def.ID, def.Params)
		if err != nil {
			return nil, &CompileError{Field: "nodes." + def.ID, Message: err.Error(), Pos: def.Pos}
		}
		out = append(out, n)
	}
	return out, nil
}

// InitialData returns a copy of the workflow's data, with overrides applied
// on top.
func (w *Workflow) InitialData(overrides map[string]any) map[string]any {
	out := make(map[string]any, len(w.Data)+len(overrides))
	for k, v := range w.Data {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func (w *Workflow) String() string {
	return fmt.Sprintf("Workflow(%s, %d nodes, terminal=%s)", w.Name, len(w.Nodes), w.Terminal)
}
