// Package log provides a structured event trace of device state coordination.
//
// This package defines the Logger interface and Event types for capturing
// what the coordinator did and why: provider reports, client requests,
// policy configuration phases and errors. It is separate from operational
// logging (slog). The event trace is machine-readable and meant for offline
// analysis with the devstate-log tool or the history store.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/log/devstate/device.dslog")
//
//	// Both: use MultiLogger
//	cfg.EventLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Every event carries a Source (who caused it) and a Category selecting the
// payload:
//   - State: base, committed, pending or supported set changes (StateChangeEvent)
//   - Request: override request actions (RequestEvent)
//   - Policy: configuration issued, completed or stalled (PolicyEvent)
//   - Error: rejected operations (ErrorEventData)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys, using
// the .dslog extension.
package log
