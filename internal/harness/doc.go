// Package harness runs workflow scenarios as executable contract tests.
//
// A scenario names a workflow from a catalog, optionally overrides its
// initial data and terminal, and lists assertions over the finished run.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: array_fanout
//	description: "process runs once per spread item"
//	workflow: array
//	run_id: run-array
//	data:
//	  request_data: [alice, bob]
//	expect_status: SUCCEEDED
//	assertions:
//	  - type: exec_count
//	    node: process
//	    count: 2
//	  - type: parcel_equals
//	    name: result
//	    value: ["PROCESSED: ALICE", "PROCESSED: BOB"]
//
// # Assertion Types
//
//   - parcel_equals: the name is bound to a value equal to value
//   - parcel_absent: the name is not bound
//   - exec_count: the node executed exactly count times
//   - exec_order: the invocations (node or node[i]) appear in this order
//   - rounds: the run executed exactly count rounds
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run ID (scenario.run_id, or
// "test-run-default") and a step clock, so execution logs are identical
// across runs and can be compared against golden files with RunWithGolden.
package harness
