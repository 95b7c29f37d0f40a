package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/roach88/parcelflow/internal/node"
	"github.com/roach88/parcelflow/internal/parcel"
)

// run is the per-Execute state. All of it is owned by the goroutine calling
// Execute.
type run struct {
	e        *Engine
	id       string
	nodes    []node.Node
	terminal parcel.Name
	state    *parcel.Set
	ledger   *Ledger
	budget   *RoundBudget
	clock    *Clock
	log      *slog.Logger
	result   *Result
}

func (e *Engine) newRun(nodes []node.Node, terminal parcel.Name) *run {
	nodesCopy := make([]node.Node, len(nodes))
	copy(nodesCopy, nodes)

	id := e.runIDs.Generate()
	return &run{
		e:        e,
		id:       id,
		nodes:    nodesCopy,
		terminal: terminal,
		state:    parcel.NewSet(),
		ledger:   NewLedger(),
		budget:   NewRoundBudget(e.maxRounds),
		clock:    NewClock(),
		log:      e.logger.With("run_id", id),
		result: &Result{
			RunID:     id,
			Terminal:  terminal.String(),
			StartedAt: e.now(),
		},
	}
}

// seed binds the initial data in name order.
func (r *run) seed(initialData map[string]any) error {
	names := make([]string, 0, len(initialData))
	for name := range initialData {
		names = append(names, name)
	}
	sort.Strings(names)

	at := r.e.now()
	for _, raw := range names {
		name, err := parcel.ParseName(raw)
		if err != nil {
			return invalidWorkflow("initial data: %v", err)
		}
		if name.Indexed {
			return invalidWorkflow("initial data name %q must not be indexed", raw)
		}
		if err := r.state.Bind(parcel.NewAt(name, initialData[raw], at, "")); err != nil {
			// Two raw keys normalized to the same name.
			return invalidWorkflow("initial data: %v", err)
		}
	}
	return nil
}

// loop runs rounds until the run reaches a final status.
func (r *run) loop(ctx context.Context) {
	r.log.Info("run starting",
		"nodes", len(r.nodes),
		"initial", r.state.Len(),
		"terminal", r.terminal.String(),
	)

	for {
		if r.state.Has(r.terminal) {
			r.finish(StatusSucceeded, nil)
			return
		}

		if err := ctx.Err(); err != nil {
			r.finish(StatusFailed, &RuntimeError{
				Code:    ErrCodeCancelled,
				Message: err.Error(),
				RunID:   r.id,
			})
			return
		}

		pending := r.scan()
		if len(pending) == 0 {
			r.finish(StatusDeadlocked, nil)
			return
		}

		if err := r.budget.Check(r.id); err != nil {
			r.finish(StatusFailed, err)
			return
		}
		round := r.budget.Current()

		r.log.Debug("round starting", "round", round, "eligible", len(pending))

		staged, err := r.executeRound(ctx, round, pending)
		r.result.RoundsExecuted = round
		if err != nil {
			r.finish(StatusFailed, err)
			return
		}

		if err := r.commit(round, staged); err != nil {
			r.finish(StatusFailed, err)
			return
		}
	}
}

func (r *run) finish(status Status, err error) {
	res := r.result
	res.Status = status
	res.Err = err
	res.Parcels = r.state
	res.FinalState = r.state.Values()
	res.FinishedAt = r.e.now()

	attrs := []any{
		"status", string(status),
		"rounds", res.RoundsExecuted,
		"executions", len(res.ExecutionLog),
		"parcels", r.state.Len(),
	}
	switch status {
	case StatusSucceeded:
		r.log.Info("run finished", attrs...)
	case StatusDeadlocked:
		r.log.Warn("run deadlocked", attrs...)
	default:
		attrs = append(attrs, "error", err)
		var ne *node.NodeExecutionError
		if errors.As(err, &ne) {
			attrs = append(attrs, "node_id", ne.NodeID)
		}
		r.log.Error("run failed", attrs...)
	}
}
