// Package request models client-issued device state override requests.
//
// A client holding a registered callback may request that the device enter
// a specific supported state. The request is identified by an opaque token
// chosen by the client and stays live until it is canceled explicitly, the
// issuing client goes away, the requested state stops being supported, or
// (with FlagCancelWhenBaseChanges) the base state changes.
//
// # Arbitration
//
// Requests are kept in issue order. The most recently issued live request
// is ACTIVE and determines the override state; any older live requests are
// SUSPENDED until the requests above them are gone.
package request
