// Package discovery announces a device state daemon on the local network
// over mDNS/DNS-SD.
//
// The daemon advertises one service of type _devstate._tcp pointing at its
// WebSocket bridge. The TXT record carries the committed device state so
// that observers can follow the device without connecting:
//
//	st  committed state identifier (-1 when nothing is committed yet)
//	sn  committed state name (optional)
//	ss  supported state identifiers, comma-separated
//	v   TXT format version
//
// Publisher keeps the TXT record in sync by listening for committed state
// changes.
package discovery
