// Package devicestate defines device states and the catalog of states a
// device currently supports.
//
// A device state is a physical or logical configuration of the device, for
// example CLOSED, HALF_OPENED or OPENED on a foldable. States are identified
// by a small non-negative integer; the name is informational.
//
// # Supported States
//
// The state provider reports the set of usable states. The set is replaced
// wholesale on every report and never partially mutated. A state that is not
// in the current set can be neither reported as the base state nor requested
// as an override.
//
// # Sentinel
//
// Invalid (identifier -1) is the sentinel invalid state. It is never
// supported and is also used to represent an absent optional state.
package devicestate
