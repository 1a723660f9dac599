// Package policy defines how the device is reconfigured for a new state.
//
// The coordinator hands a target state to a Configurer and waits for the
// completion callback before committing the state. At most one
// configuration is outstanding at any time, and every call must eventually
// invoke its completion callback exactly once.
package policy
