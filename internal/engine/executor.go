package engine

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/parcelflow/internal/node"
	"github.com/roach88/parcelflow/internal/parcel"
)

// staged is one output waiting for the commit barrier.
type staged struct {
	name     parcel.Name
	value    any
	producer string
	index    int
	indexed  bool
}

// executeRound runs every pending invocation against the state as it was
// before the round and returns their outputs in execution order.
//
// The first failing invocation stops the round. The caller must then commit
// nothing.
func (r *run) executeRound(ctx context.Context, round int, pending []invocation) ([]staged, error) {
	var out []staged
	for _, inv := range pending {
		start := r.e.now()
		outputs, err := r.invoke(ctx, inv)
		var named []staged
		if err == nil {
			named, err = r.nameOutputs(inv, outputs)
		}

		entry := ExecutionEntry{
			Seq:      r.clock.Next(),
			Round:    round,
			NodeID:   inv.node.ID(),
			Index:    inv.index,
			HasIndex: inv.indexed,
			Duration: r.e.now().Sub(start),
		}
		if err != nil {
			entry.Err = err.Error()
			r.result.ExecutionLog = append(r.result.ExecutionLog, entry)
			return nil, err
		}

		entry.Outputs = make([]string, len(named))
		for i, s := range named {
			entry.Outputs[i] = s.name.String()
		}
		r.result.ExecutionLog = append(r.result.ExecutionLog, entry)
		r.ledger.Record(inv.record())

		r.log.Debug("node executed",
			"round", round,
			"node_id", entry.NodeID,
			"invocation", entry.Label(),
			"outputs", len(named),
			"duration", entry.Duration,
		)
		out = append(out, named...)
	}
	return out, nil
}

// invoke calls the node once and converts every failure mode into a
// *node.NodeExecutionError.
func (r *run) invoke(ctx context.Context, inv invocation) (map[string]any, error) {
	fail := func(cause error) error {
		return &node.NodeExecutionError{
			NodeID:   inv.node.ID(),
			Index:    inv.index,
			HasIndex: inv.indexed,
			Cause:    cause,
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fail(err)
	}

	in := inv.input(r.state)
	if r.e.timeout <= 0 && ctx.Done() == nil {
		out, err := safeRun(ctx, inv.node, in)
		if err != nil {
			return nil, fail(err)
		}
		return out, nil
	}

	callCtx := ctx
	if r.e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.e.timeout)
		defer cancel()
	}

	type reply struct {
		out map[string]any
		err error
	}
	done := make(chan reply, 1)
	go func() {
		out, err := safeRun(callCtx, inv.node, in)
		done <- reply{out: out, err: err}
	}()

	select {
	case rep := <-done:
		if rep.err != nil {
			return nil, fail(rep.err)
		}
		return rep.out, nil
	case <-callCtx.Done():
		// Prefer a result that raced with the deadline.
		select {
		case rep := <-done:
			if rep.err == nil {
				return rep.out, nil
			}
		default:
		}
		return nil, fail(callCtx.Err())
	}
}

// safeRun calls n.Run and turns a panic into an error.
func safeRun(ctx context.Context, n node.Node, in *node.Input) (out map[string]any, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return n.Run(ctx, in)
}

// nameOutputs validates the names an invocation returned and qualifies them.
//
// In indexed mode a bare output Y becomes Y[i]; an indexed name is rejected.
// In scalar mode names are kept as returned. Results are sorted by name.
func (r *run) nameOutputs(inv invocation, outputs map[string]any) ([]staged, error) {
	invalid := func(format string, args ...any) error {
		return &node.NodeExecutionError{
			NodeID:   inv.node.ID(),
			Index:    inv.index,
			HasIndex: inv.indexed,
			Cause: &RuntimeError{
				Code:    ErrCodeInvalidOutput,
				Message: fmt.Sprintf(format, args...),
				RunID:   r.id,
				NodeID:  inv.node.ID(),
			},
		}
	}

	declared := inv.node.Outputs()
	out := make([]staged, 0, len(outputs))
	for raw, v := range outputs {
		name, err := parcel.ParseName(raw)
		if err != nil {
			return nil, invalid("output %q: %v", raw, err)
		}
		if inv.indexed {
			if name.Indexed {
				return nil, invalid("output %q is indexed inside indexed invocation %d", raw, inv.index)
			}
			name = parcel.At(name.Base, inv.index)
		}
		if !slices.Contains(declared, name.Base) {
			r.log.Warn("undeclared output",
				"node_id", inv.node.ID(),
				"name", name.String(),
			)
		}
		out = append(out, staged{
			name:     name,
			value:    v,
			producer: inv.node.ID(),
			index:    inv.index,
			indexed:  inv.indexed,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].name.String() < out[j].name.String()
	})
	return out, nil
}
