package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/foldsense/devstate-go/pkg/log"
)

var fixtureStart = time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)

func durationPtr(d time.Duration) *time.Duration { return &d }

func intPtr(v int) *int { return &v }

// fixtureEvents is a short session: a client overrides the state,
// the policy configures it, and the request is canceled.
func fixtureEvents() []log.Event {
	at := func(ms int) time.Time { return fixtureStart.Add(time.Duration(ms) * time.Millisecond) }
	return []log.Event{
		{
			Timestamp: at(0), SessionID: "sess-aaaaaaaaaa", Source: log.SourceProvider, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntitySupported, Old: -1, New: -1, Supported: []int{0, 1, 2}},
		},
		{
			Timestamp: at(1), SessionID: "sess-aaaaaaaaaa", Source: log.SourceProvider, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityBase, Old: -1, New: 0, NewName: "DEFAULT"},
		},
		{
			Timestamp: at(10), SessionID: "sess-aaaaaaaaaa", Source: log.SourceClient, Category: log.CategoryRequest,
			ClientID: "ws-1",
			Request:  &log.RequestEvent{Token: "tok-1", State: 1, Flags: 1, Action: log.RequestIssued},
		},
		{
			Timestamp: at(11), SessionID: "sess-aaaaaaaaaa", Source: log.SourcePolicy, Category: log.CategoryPolicy,
			Policy: &log.PolicyEvent{Phase: log.PolicyIssued, State: 1, Sequence: 1},
		},
		{
			Timestamp: at(60), SessionID: "sess-aaaaaaaaaa", Source: log.SourcePolicy, Category: log.CategoryPolicy,
			Policy: &log.PolicyEvent{Phase: log.PolicyCompleted, State: 1, Sequence: 1, Elapsed: durationPtr(49 * time.Millisecond)},
		},
		{
			Timestamp: at(61), SessionID: "sess-aaaaaaaaaa", Source: log.SourceCoordinator, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityCommitted, Old: -1, New: 1, NewName: "TENT"},
		},
		{
			Timestamp: at(62), SessionID: "sess-aaaaaaaaaa", Source: log.SourceCoordinator, Category: log.CategoryRequest,
			ClientID: "ws-1",
			Request:  &log.RequestEvent{Token: "tok-1", State: 1, Action: log.RequestActivated},
		},
		{
			Timestamp: at(70), SessionID: "sess-aaaaaaaaaa", Source: log.SourceClient, Category: log.CategoryError,
			ClientID: "ws-2",
			Error:    &log.ErrorEventData{Operation: "request", Message: "state 9 is not supported", State: intPtr(9)},
		},
		{
			Timestamp: at(2000), SessionID: "sess-aaaaaaaaaa", Source: log.SourceClient, Category: log.CategoryRequest,
			ClientID: "ws-1",
			Request:  &log.RequestEvent{Token: "tok-1", State: 1, Action: log.RequestCanceled, Reason: "client canceled"},
		},
	}
}

// writeFixture writes events to a log file in a temporary directory.
func writeFixture(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device.dslog")
	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}
