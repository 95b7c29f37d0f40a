package engine

import "sort"

// ExecutionRecord marks that one invocation shape of a node has completed.
type ExecutionRecord struct {
	NodeID  string
	Index   int
	Indexed bool
}

func scalarRecord(nodeID string) ExecutionRecord {
	return ExecutionRecord{NodeID: nodeID}
}

func indexedRecord(nodeID string, i int) ExecutionRecord {
	return ExecutionRecord{NodeID: nodeID, Index: i, Indexed: true}
}

// Ledger is the set of executed (node, index) pairs for one run.
//
// A pair is recorded once it has executed successfully and is never
// scheduled again. The ledger is owned by the run loop goroutine and is not
// safe for concurrent use.
type Ledger struct {
	done map[ExecutionRecord]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{done: make(map[ExecutionRecord]struct{})}
}

// Done reports whether rec has already executed.
func (l *Ledger) Done(rec ExecutionRecord) bool {
	_, ok := l.done[rec]
	return ok
}

// Record marks rec as executed.
func (l *Ledger) Record(rec ExecutionRecord) {
	l.done[rec] = struct{}{}
}

// Len returns the number of executed pairs.
func (l *Ledger) Len() int {
	return len(l.done)
}

// Records returns every executed pair ordered by node ID, scalar first, then
// ascending index.
func (l *Ledger) Records() []ExecutionRecord {
	out := make([]ExecutionRecord, 0, len(l.done))
	for rec := range l.done {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.NodeID != b.NodeID {
			return a.NodeID < b.NodeID
		}
		if a.Indexed != b.Indexed {
			return !a.Indexed
		}
		return a.Index < b.Index
	})
	return out
}
