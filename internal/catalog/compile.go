package catalog

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/parcelflow/internal/nodes"
	"github.com/roach88/parcelflow/internal/parcel"
)

// Workflow is a compiled workflow definition.
type Workflow struct {
	Name        string
	Description string
	Terminal    string
	Data        map[string]any
	Nodes       []NodeDef
	Pos         token.Pos
}

// NodeDef is one entry of a workflow's node list.
type NodeDef struct {
	ID     string
	Kind   string
	Params nodes.Params
	Pos    token.Pos
}

// CompileError reports an invalid workflow definition.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileWorkflow converts the CUE value of one workflow into a Workflow.
//
// The value must already be unified with the schema:
//
//	v := catalogValue.LookupPath(cue.ParsePath("workflow.simple"))
//	wf, err := CompileWorkflow("simple", v)
func CompileWorkflow(name string, v cue.Value) (*Workflow, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	wf := &Workflow{Name: name, Pos: v.Pos()}

	var err error
	if wf.Description, err = lookupString(v, "description"); err != nil {
		return nil, err
	}
	if wf.Terminal, err = lookupString(v, "terminal"); err != nil {
		return nil, err
	}
	if _, err := parcel.ParseName(wf.Terminal); err != nil {
		return nil, &CompileError{Field: "terminal", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("terminal")).Pos()}
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	if wf.Data, err = parseData(v.LookupPath(cue.ParsePath("data"))); err != nil {
		return nil, err
	}
	if wf.Nodes, err = parseNodes(v.LookupPath(cue.ParsePath("nodes"))); err != nil {
		return nil, err
	}
	if len(wf.Nodes) == 0 {
		return nil, &CompileError{
			Field:   "nodes",
			Message: "at least one node is required",
			Pos:     v.Pos(),
		}
	}

	return wf, nil
}

func lookupString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if err := fv.Err(); err != nil {
		return "", formatCUEError(err)
	}
	if d, ok := fv.Default(); ok {
		fv = d
	}
	if !fv.Exists() || !fv.IsConcrete() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func parseData(v cue.Value) (map[string]any, error) {
	data := map[string]any{}
	if !v.Exists() {
		return data, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		label := iter.Label()
		name, err := parcel.ParseName(label)
		if err != nil {
			return nil, &CompileError{Field: "data." + label, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		if name.Indexed {
			return nil, &CompileError{
				Field:   "data." + label,
				Message: "initial data names must not be indexed",
				Pos:     iter.Value().Pos(),
			}
		}
		val, err := toGo(iter.Value())
		if err != nil {
			return nil, err
		}
		data[label] = val
	}
	return data, nil
}

func parseNodes(v cue.Value) ([]NodeDef, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []NodeDef
	seen := make(map[string]bool)
	for iter.Next() {
		nv := iter.Value()
		def := NodeDef{Pos: nv.Pos()}

		if def.ID, err = lookupString(nv, "id"); err != nil {
			return nil, err
		}
		if seen[def.ID] {
			return nil, &CompileError{
				Field:   "nodes",
				Message: fmt.Sprintf("duplicate node id %q", def.ID),
				Pos:     nv.Pos(),
			}
		}
		seen[def.ID] = true

		if def.Kind, err = lookupString(nv, "kind"); err != nil {
			return nil, err
		}

		if pv := nv.LookupPath(cue.ParsePath("params")); pv.Exists() {
			raw, err := toGo(pv)
			if err != nil {
				return nil, err
			}
			if m, _ := raw.(map[string]any); len(m) > 0 {
				def.Params = nodes.Params(m)
			}
		}

		defs = append(defs, def)
	}
	return defs, nil
}

// toGo converts a concrete CUE value to plain Go values: nil, bool, int,
// float64, string, []byte, []any and map[string]any.
func toGo(v cue.Value) (any, error) {
	if d, ok := v.Default(); ok {
		v = d
	}

	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return int(i), nil
	case cue.FloatKind:
		return v.Float64()
	case cue.StringKind:
		return v.String()
	case cue.BytesKind:
		return v.Bytes()
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for iter.Next() {
			item, err := toGo(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := map[string]any{}
		for iter.Next() {
			item, err := toGo(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = item
		}
		return out, nil
	default:
		return nil, &CompileError{
			Field:   v.Path().String(),
			Message: "value is not concrete",
			Pos:     v.Pos(),
		}
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
