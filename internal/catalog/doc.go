// Package catalog loads workflow definitions written in CUE.
//
// A workflow file declares entries under the top-level workflow field:
//
//	package workflows
//
//	workflow: greet: {
//		description: "..."
//		terminal:    "response"
//		data: request_data: "hi"
//		nodes: [
//			{id: "validate", kind: "validate"},
//			{id: "response", kind: "response", params: input: "validation_result"},
//		]
//	}
//
// Every loaded value is unified with the embedded schema (schema.cue), so
// unknown fields and malformed names are rejected with CUE positions. The
// built-in workflows live in defs/ and are embedded into the binary.
package catalog
