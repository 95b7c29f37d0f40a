package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/roach88/parcelflow/internal/node"
	"github.com/roach88/parcelflow/internal/parcel"
)

// Status is the outcome of a run.
type Status string

const (
	// StatusSucceeded means the terminal name was bound.
	StatusSucceeded Status = "SUCCEEDED"

	// StatusDeadlocked means no invocation was eligible and the terminal
	// name was never bound.
	StatusDeadlocked Status = "DEADLOCKED"

	// StatusFailed means a node failed, a strict conflict occurred, the
	// context ended or the round budget ran out.
	StatusFailed Status = "FAILED"
)

// ExecutionEntry is one line of the execution log.
type ExecutionEntry struct {
	Seq      int64
	Round    int
	NodeID   string
	Index    int
	HasIndex bool
	Duration time.Duration

	// Outputs lists the fully qualified names the invocation returned,
	// sorted. Empty for failed invocations.
	Outputs []string

	// Err is the failure message, empty on success.
	Err string
}

// Label renders the invocation as node or node[i].
func (e ExecutionEntry) Label() string {
	if e.HasIndex {
		return fmt.Sprintf("%s[%d]", e.NodeID, e.Index)
	}
	return e.NodeID
}

// Conflict records an output that was not bound because its name was taken.
type Conflict struct {
	Name     string
	Round    int
	NodeID   string
	Index    int
	HasIndex bool

	// Winner is the node that holds the name, empty for initial data.
	Winner string
}

// Result is the outcome of Execute.
type Result struct {
	RunID    string
	Terminal string
	Status   Status

	// FinalState maps every bound name to its value.
	FinalState map[string]any

	// Parcels is the final state including timestamps and producers.
	Parcels *parcel.Set

	RoundsExecuted int
	ExecutionLog   []ExecutionEntry
	Conflicts      []Conflict

	// Err is the failure cause when Status is FAILED.
	Err error

	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the terminal name was bound.
func (r *Result) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// TerminalValue returns the value bound to the terminal name.
func (r *Result) TerminalValue() (any, bool) {
	v, ok := r.FinalState[r.Terminal]
	return v, ok
}

// Executions returns the log entries of one node in execution order.
func (r *Result) Executions(nodeID string) []ExecutionEntry {
	var out []ExecutionEntry
	for _, e := range r.ExecutionLog {
		if e.NodeID == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Digest returns the canonical digest of the final state.
func (r *Result) Digest() (string, error) {
	return parcel.Digest(r.FinalState)
}

// Missing lists, sorted, every requirement of nodes that is bound neither
// bare nor as a family member, every absent member of a gathered family, and
// every bound count that is not a valid size. For a deadlocked run these are
// the names the workflow was waiting for.
func (r *Result) Missing(nodes []node.Node) []string {
	if r.Parcels == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	for _, n := range nodes {
		for _, req := range n.Requires() {
			if !r.Parcels.Has(parcel.Bare(req)) && !r.Parcels.HasFamily(req) {
				add(req)
			}
		}
		for _, g := range node.GathersIn(r.Parcels, n) {
			count, err := node.CountOf(r.Parcels, g.Count)
			if err != nil {
				if r.Parcels.Has(parcel.Bare(g.Count)) {
					add(g.Count + " (invalid count)")
				}
				continue
			}
			for i := 0; i < count; i++ {
				name := parcel.At(g.Family, i)
				if !r.Parcels.Has(name) {
					add(name.String())
				}
			}
		}
	}
	sort.Strings(out)
	return out
}
