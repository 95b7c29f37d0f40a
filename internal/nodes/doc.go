// Package nodes provides the built-in node kinds used by catalog workflows.
//
// Each kind is a constructor taking a node ID and a Params map. Kinds read
// their input and output names from params so the same kind can be wired
// into different workflows:
//
//	request   → request_received
//	validate  request_data → validation_result
//	transform validation_result → transformed_data
//	log       request_data → log_entry
//	spread    request_data → user[i], user_count
//	process   user → processed (runs once per index)
//	collect   processed family + user_count → result
//	response  result → response
//
// Node values are pure functions of their inputs. No kind reads the wall
// clock, so identical inputs always produce identical state.
package nodes
