package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/foldsense/devstate-go/pkg/coordinator"
	"github.com/foldsense/devstate-go/pkg/devicestate"
)

// SnapshotVersion is the current version of the snapshot file format.
const SnapshotVersion = 1

// ErrUnsupportedVersion is returned when loading a snapshot written by a
// newer format version.
var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// SavedState is the JSON form of a devicestate.DeviceState.
type SavedState struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Flags uint32 `json:"flags,omitempty"`
}

// Snapshot is the persisted coordinator state.
type Snapshot struct {
	// Version is the file format version.
	Version int `json:"version"`

	// SavedAt is when the snapshot was written.
	SavedAt time.Time `json:"saved_at"`

	// Base and Committed are state identifiers, -1 when absent.
	Base      int `json:"base"`
	Committed int `json:"committed"`

	// Supported is the supported state set.
	Supported []SavedState `json:"supported,omitempty"`
}

// SnapshotFromInfo converts a coordinator snapshot.
func SnapshotFromInfo(info coordinator.Info) *Snapshot {
	s := &Snapshot{
		Base:      info.Base.Identifier,
		Committed: info.Committed.Identifier,
	}
	for _, st := range info.Supported {
		s.Supported = append(s.Supported, SavedState{ID: st.Identifier, Name: st.Name, Flags: uint32(st.Flags)})
	}
	return s
}

// States returns the supported set as device states.
func (s *Snapshot) States() []devicestate.DeviceState {
	out := make([]devicestate.DeviceState, len(s.Supported))
	for i, st := range s.Supported {
		out[i] = devicestate.DeviceState{Identifier: st.ID, Name: st.Name, Flags: devicestate.StateFlags(st.Flags)}
	}
	return out
}

// Resume returns the state a provider should start in: the saved base
// state when it is still in supported, otherwise fallback.
func (s *Snapshot) Resume(supported []devicestate.DeviceState, fallback int) int {
	if s == nil || s.Base == devicestate.InvalidIdentifier {
		return fallback
	}
	for _, st := range supported {
		if st.Identifier == s.Base {
			return s.Base
		}
	}
	return fallback
}

// StateStore manages a snapshot file.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore creates a store for path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the snapshot file path.
func (s *StateStore) Path() string {
	return s.path
}

// Save writes the snapshot. The file is replaced atomically.
func (s *StateStore) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	snap.Version = SnapshotVersion
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the snapshot. Returns nil, nil if the file doesn't exist.
func (s *StateStore) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, err
	}
	if snap.Version > SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, snap.Version)
	}
	return snap, nil
}

// Clear removes the snapshot file.
func (s *StateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
