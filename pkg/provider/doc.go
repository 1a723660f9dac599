// Package provider reports the device's physical state to the coordinator.
//
// A provider pushes two kinds of events to its Listener: the set of
// supported states, replaced wholesale, and the raw state the hardware is
// currently in (the base state). The two are never reported concurrently.
// Errors returned by the listener, for example for an unsupported state,
// propagate back to the caller that drove the report.
//
// Simulated is an in-memory provider for tools and tests. Script replays a
// YAML timeline of reports against a Simulated provider.
package provider
