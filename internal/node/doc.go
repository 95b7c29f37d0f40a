// Package node defines the contract between the engine and units of work.
//
// A Node declares the base names it requires and the base names it may
// produce, and exposes Run. The engine alone decides the invocation shape:
//
//   - Scalar mode: every requirement resolves to its bare parcel.
//   - Indexed mode: every requirement resolves to name[i], falling back to
//     the bare name for requirements that have no indexed family at all.
//
// Nodes receive a read-only Input over the state finalized before the current
// round and never iterate over families themselves, with one exception:
// a gathering node (see Gatherer) declares the families it reassembles and
// reads every index explicitly through Input.Collect.
//
// Outputs are returned by base name. Whether an output is stored bare or
// indexed is decided by the engine from the invocation mode. A scalar
// invocation may also return explicit indexed names ("user[0]") to spread an
// array into a family.
package node
