// Package parcel defines the immutable data units that flow through a
// workflow and the naming rules that relate them.
//
// A parcel is bound to a name that is either a bare base name ("user") or an
// indexed name ("user[2]"). Parcels sharing a base and differing only by
// index form an indexed family. Families are produced by spreading an array
// (see Spread) and may be sparse: Set.Indices reports exactly the indices
// present and never assumes contiguity.
//
// # Names
//
// Names are NFC-normalized at the parsing boundary so that visually identical
// names written with different Unicode compositions resolve to the same
// parcel.
//
// # Presence
//
// Presence is always a contains-key query (Set.Has). A parcel whose value is
// zero, empty or nil is still present.
package parcel
