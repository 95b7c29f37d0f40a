// Package engine implements the parcelflow fixed-point scheduler.
//
// The engine owns a run's state (name → parcel) and the set of executed
// (node, index) pairs, and repeats rounds until the terminal name is bound or
// no invocation is eligible.
//
// ROUND STRUCTURE:
//
// 1. Scan: every eligible (node, index) pair is collected before anything
// runs. A node is scalar-eligible when every requirement is bound bare, and
// indexed-eligible at i when every requirement resolves at i (name[i], or
// the bare name for requirements with no family). Gathering nodes are
// scalar-only and wait for their count and a complete family.
//
// 2. Execute: pairs run in node registration order (scalar before indexed,
// ascending index). Outputs are buffered, never applied mid-round.
//
// 3. Commit: after the barrier, buffered outputs are bound. An invocation at
// index i stores output Y as Y[i]; a scalar invocation stores names as
// returned. Names are write-once; the first writer in registration order
// wins.
//
// 4. Terminal check: terminal bound → SUCCEEDED; empty scan → DEADLOCKED.
//
// A failing invocation aborts its round with nothing committed, including
// outputs of sibling pairs that already succeeded, and the run ends FAILED.
//
// Every pair in a round reads only state finalized in earlier rounds, so the
// contents of a round are mutually independent. Execution itself is
// sequential and deterministic: the same nodes and initial data always yield
// the same final state and execution order.
//
// The core never writes to a global logger. Pass WithLogger to observe a run;
// the structured execution log is always returned in Result.
package engine
