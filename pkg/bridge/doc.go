// Package bridge exposes the coordinator's client surface over WebSocket.
//
// Each connection is one client with its own ClientID ("ws-" followed by a
// UUID). Frames are JSON envelopes:
//
//	{"type": "state.request", "id": "7", "payload": {"state": 1}}
//
// Requests carry an id and are answered by a "result" envelope echoing it,
// with either a payload or an error {code, message}. Notifications from the
// coordinator arrive as "state.changed", "request.active",
// "request.suspended" and "request.canceled" without an id.
//
// Closing the connection unregisters the client, which cancels its
// requests.
package bridge
