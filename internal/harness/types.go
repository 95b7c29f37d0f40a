package harness

import (
	"sort"

	"github.com/roach88/parcelflow/internal/engine"
)

// TraceEvent is one execution log entry without its wall-clock duration.
type TraceEvent struct {
	Seq     int64    `json:"seq"`
	Round   int      `json:"round"`
	Node    string   `json:"node"`
	Index   *int     `json:"index,omitempty"`
	Outputs []string `json:"outputs"`
	Error   string   `json:"error,omitempty"`
}

// Label renders the event as node or node[i].
func (e TraceEvent) Label() string {
	entry := engine.ExecutionEntry{NodeID: e.Node}
	if e.Index != nil {
		entry.Index, entry.HasIndex = *e.Index, true
	}
	return entry.Label()
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when the status matched and every assertion held.
	Pass bool `json:"pass"`

	RunID  string `json:"run_id"`
	Status string `json:"status"`
	Rounds int    `json:"rounds"`

	// Trace is the execution log in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final state of the run.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Names returns the bound names of the final state, sorted.
func (r *Result) Names() []string {
	names := make([]string, 0, len(r.State))
	for name := range r.State {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newTrace(log []engine.ExecutionEntry) []TraceEvent {
	trace := make([]TraceEvent, len(log))
	for i, e := range log {
		ev := TraceEvent{
			Seq:     e.Seq,
			Round:   e.Round,
			Node:    e.NodeID,
			Outputs: e.Outputs,
			Error:   e.Err,
		}
		if ev.Outputs == nil {
			ev.Outputs = []string{}
		}
		if e.HasIndex {
			idx := e.Index
			ev.Index = &idx
		}
		trace[i] = ev
	}
	return trace
}
