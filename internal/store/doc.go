// Package store provides SQLite-backed history of finished workflow runs.
//
// Three append-only tables are kept:
//   - runs: one row per run (status, rounds, digest of the final state)
//   - executions: the execution log, one row per (node, index) invocation
//   - parcels: the final state, values stored as canonical JSON
//
// # Ordering
//
// Execution rows are always read ORDER BY seq ASC, the engine's logical
// clock, never by wall time. Parcels are read ORDER BY name COLLATE BINARY.
// Reads of the same run are therefore byte-identical.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The store records history only. A run cannot be resumed from it.
package store
