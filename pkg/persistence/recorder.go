package persistence

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/foldsense/devstate-go/pkg/callback"
	"github.com/foldsense/devstate-go/pkg/coordinator"
	"github.com/foldsense/devstate-go/pkg/devicestate"
	"github.com/foldsense/devstate-go/pkg/request"
)

// InfoSource provides coordinator snapshots.
type InfoSource interface {
	Info(ctx context.Context) (coordinator.Info, error)
}

// Recorder saves a snapshot every time the committed state changes.
type Recorder struct {
	store   *StateStore
	source  InfoSource
	logger  *slog.Logger
	timeout time.Duration
}

// NewRecorder creates a recorder. Register it with the coordinator as a
// callback listener.
func NewRecorder(store *StateStore, source InfoSource, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Recorder{store: store, source: source, logger: logger, timeout: 2 * time.Second}
}

// OnDeviceStateChanged implements callback.Listener.
func (r *Recorder) OnDeviceStateChanged(state devicestate.DeviceState) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	info, err := r.source.Info(ctx)
	if err != nil {
		r.logger.Warn("snapshot skipped", "state", state.String(), "error", err)
		return
	}
	if err := r.store.Save(SnapshotFromInfo(info)); err != nil {
		r.logger.Warn("snapshot save failed", "path", r.store.Path(), "error", err)
		return
	}
	r.logger.Debug("snapshot saved", "committed", info.Committed.String())
}

// OnRequestActive implements callback.Listener.
func (r *Recorder) OnRequestActive(request.Token) {}

// OnRequestSuspended implements callback.Listener.
func (r *Recorder) OnRequestSuspended(request.Token) {}

// OnRequestCanceled implements callback.Listener.
func (r *Recorder) OnRequestCanceled(request.Token) {}

// Compile-time interface satisfaction check.
var _ callback.Listener = (*Recorder)(nil)
