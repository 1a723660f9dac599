// Package coordinator reconciles the device's physical state, client
// override requests and the policy that configures the device.
//
// A Coordinator tracks four states:
//
//   - base: the state last reported by the provider (absent when the
//     provider's state is no longer supported)
//   - override: the state of the newest live client request
//   - pending: the state the policy is currently configuring
//   - committed: the state the policy finished configuring; this is the
//     externally visible device state
//
// The desired state is the override when one exists, else the base. When
// the desired state differs from the committed one and nothing is pending,
// the coordinator asks the policy to configure it. At most one
// configuration is outstanding at any time; events arriving meanwhile are
// folded into the next reconciliation after completion.
//
// All mutation runs on a single goroutine that drains an unbounded
// mailbox. Provider reports, client calls and policy completions are
// posted to it; callers that need a result block until their event has
// been handled. Listener notifications are delivered by a callback.Hub on
// its own goroutine, so listeners may call back into the coordinator.
//
// # Request arbitration
//
// The newest live request is ACTIVE and defines the override. Issuing a
// request suspends the previous top request; canceling the top request
// resumes the newest suspended one.
package coordinator
