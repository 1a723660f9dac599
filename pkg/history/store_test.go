package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldsense/devstate-go/pkg/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func commitEvent(at time.Time, from, to int, name string) log.Event {
	return log.Event{
		Timestamp: at,
		SessionID: "s-1",
		Source:    log.SourceCoordinator,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:  log.StateEntityCommitted,
			Old:     from,
			New:     to,
			NewName: name,
		},
	}
}

func TestStoreRecordsCommittedTransitions(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	store.Log(commitEvent(base, -1, 0, "CLOSED"))
	store.Log(commitEvent(base.Add(time.Minute), 0, 2, "OPEN"))
	store.Log(log.Event{
		Timestamp:   base,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{Entity: log.StateEntityBase, Old: -1, New: 0},
	})

	got, err := store.Transitions(0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, -1, got[0].From)
	assert.Equal(t, 0, got[0].To)
	assert.Equal(t, "OPEN", got[1].ToName)
	assert.True(t, got[1].At.Equal(base.Add(time.Minute)))

	bases, err := store.StateChanges(log.StateEntityBase, 0)
	require.NoError(t, err)
	assert.Len(t, bases, 1)
}

func TestStoreTransitionsLimitKeepsNewest(t *testing.T) {
	store := newTestStore(t)
	base := time.Now()
	for i := 0; i < 5; i++ {
		store.Log(commitEvent(base.Add(time.Duration(i)*time.Second), i-1, i, ""))
	}

	got, err := store.Transitions(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].To)
	assert.Equal(t, 4, got[1].To)
}

func TestStoreRequests(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	for _, action := range []log.RequestAction{log.RequestIssued, log.RequestActivated, log.RequestCanceled} {
		store.Log(log.Event{
			Timestamp: now,
			SessionID: "s-1",
			Source:    log.SourceClient,
			Category:  log.CategoryRequest,
			ClientID:  "ws-1",
			Request:   &log.RequestEvent{Token: "tok-a", State: 1, Flags: 1, Action: action},
		})
	}
	store.Log(log.Event{
		Category: log.CategoryRequest,
		Request:  &log.RequestEvent{Token: "tok-b", State: 2, Action: log.RequestIssued},
	})

	got, err := store.Requests("tok-a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, log.RequestIssued, got[0].Action)
	assert.Equal(t, log.RequestCanceled, got[2].Action)
	assert.Equal(t, "ws-1", got[0].ClientID)
	assert.Equal(t, uint32(1), got[0].Flags)

	none, err := store.Requests("missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStoreIgnoresOtherCategories(t *testing.T) {
	store := newTestStore(t)
	store.Log(log.Event{Category: log.CategoryPolicy, Policy: &log.PolicyEvent{Phase: log.PolicyIssued}})
	store.Log(log.Event{Category: log.CategoryError, Error: &log.ErrorEventData{Message: "x"}})
	store.Log(log.Event{Category: log.CategoryState, StateChange: &log.StateChangeEvent{Entity: log.StateEntitySupported}})

	got, err := store.StateChanges(log.StateEntitySupported, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, store.Failed())
}

func TestStoreResidency(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	store.Log(commitEvent(base, -1, 0, "CLOSED"))
	store.Log(commitEvent(base.Add(10*time.Second), 0, 1, "HALF"))
	store.Log(commitEvent(base.Add(15*time.Second), 1, 0, "CLOSED"))

	got, err := store.Residency(base.Add(20 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, got[0])
	assert.Equal(t, 5*time.Second, got[1])
}

func TestStoreResidencyStopsAtSessionEnd(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	store.Log(commitEvent(base, -1, 0, "CLOSED"))
	store.Log(commitEvent(base.Add(10*time.Second), 0, 1, "HALF"))
	// The first session's last event is a cancel 5s after the last commit.
	store.Log(log.Event{
		Timestamp: base.Add(15 * time.Second),
		SessionID: "s-1",
		Source:    log.SourceClient,
		Category:  log.CategoryRequest,
		Request:   &log.RequestEvent{Token: "tok", State: 1, Action: log.RequestCanceled},
	})

	// The daemon is down for an hour before the next session commits.
	restart := base.Add(time.Hour)
	next := commitEvent(restart, -1, 0, "CLOSED")
	next.SessionID = "s-2"
	store.Log(next)

	got, err := store.Residency(restart.Add(30 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second+30*time.Second, got[0])
	assert.Equal(t, 5*time.Second, got[1])
}

func TestStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := NewStore(path, nil)
	require.NoError(t, err)
	store.Log(commitEvent(time.Now(), -1, 3, "TENT"))
	require.NoError(t, store.Close())

	store, err = NewStore(path, nil)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Transitions(0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "TENT", got[0].ToName)
}

func TestStoreCountsFailedWrites(t *testing.T) {
	store, err := NewStore(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store.Log(commitEvent(time.Now(), -1, 0, ""))
	assert.Equal(t, uint64(1), store.Failed())
}
