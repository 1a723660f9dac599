// Package persistence saves the coordinator's last known device state so a
// restarted daemon can resume from it.
//
// Snapshots are JSON files written atomically. Recorder is a
// callback.Listener that writes a fresh snapshot whenever the committed
// state changes.
package persistence
