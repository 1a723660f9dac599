// Package history keeps a queryable record of coordinator activity in
// SQLite.
//
// Store implements log.Logger, so it can be attached to a coordinator's
// event trace directly or next to a FileLogger through log.MultiLogger.
// It records state transitions and request actions and answers questions
// such as "how long was the device in each state".
package history
