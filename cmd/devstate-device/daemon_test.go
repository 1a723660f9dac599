package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldsense/devstate-go/pkg/callback"
	"github.com/foldsense/devstate-go/pkg/config"
	devlog "github.com/foldsense/devstate-go/pkg/log"
	"github.com/foldsense/devstate-go/pkg/persistence"
	"github.com/foldsense/devstate-go/pkg/policy"
	"github.com/foldsense/devstate-go/pkg/request"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Device.States = []config.StateConfig{
		{ID: 0, Name: "CLOSED"},
		{ID: 1, Name: "OPENED"},
		{ID: 2, Name: "HOT", Flags: []string{"cancel_override_requests"}},
	}
	cfg.Bridge.Addr = "127.0.0.1:0"
	cfg.Device.StateFile = filepath.Join(dir, "state.json")
	cfg.Logging.EventLog = filepath.Join(dir, "events.dslog")
	cfg.Logging.HistoryDB = filepath.Join(dir, "history.db")
	require.NoError(t, cfg.Validate())
	return cfg
}

func waitCommitted(t *testing.T, d *daemon, id int) {
	t.Helper()
	require.Eventually(t, func() bool {
		info, err := d.coord.Info(context.Background())
		return err == nil && info.Committed.Identifier == id
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDaemonLifecycle(t *testing.T) {
	cfg := testConfig(t)

	d, err := newDaemon(cfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	waitCommitted(t, d, 0)
	require.NotNil(t, d.bridge.Addr())

	require.NoError(t, d.sim.SetState(1))
	waitCommitted(t, d, 1)
	require.NoError(t, d.coord.Flush(context.Background()))

	require.Eventually(t, func() bool {
		snap, err := persistence.NewStateStore(cfg.Device.StateFile).Load()
		return err == nil && snap != nil && snap.Base == 1
	}, 2*time.Second, 10*time.Millisecond)

	transitions, err := d.hist.Transitions(0)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, 1, transitions[1].To)

	d.Stop()

	r, err := devlog.NewReader(cfg.Logging.EventLog)
	require.NoError(t, err)
	defer r.Close()
	events, err := r.ReadAll()
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

func TestDaemonResumesSavedState(t *testing.T) {
	cfg := testConfig(t)

	d, err := newDaemon(cfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.sim.SetState(1))
	waitCommitted(t, d, 1)
	require.Eventually(t, func() bool {
		snap, err := d.store.Load()
		return err == nil && snap != nil && snap.Base == 1
	}, 2*time.Second, 10*time.Millisecond)
	d.Stop()

	d, err = newDaemon(cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, d.sim.State())
	require.NoError(t, d.Start(context.Background()))
	waitCommitted(t, d, 1)
	d.Stop()
}

func TestDaemonScript(t *testing.T) {
	cfg := testConfig(t)
	cfg.Device.StateFile = ""
	script := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(script, []byte(`
steps:
  - after: 10ms
    state: 1
  - after: 10ms
    supported: [1, 2]
`), 0o644))
	cfg.Simulation.Script = script

	d, err := newDaemon(cfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	require.Eventually(t, func() bool {
		ids, err := d.coord.SupportedStates(context.Background())
		return err == nil && len(ids) == 2 && ids[0] == 1
	}, 2*time.Second, 10*time.Millisecond)
	waitCommitted(t, d, 1)
}

func TestDaemonHotStateCancelsRequests(t *testing.T) {
	cfg := testConfig(t)

	d, err := newDaemon(cfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	ctx := context.Background()
	require.NoError(t, d.coord.RegisterCallback(ctx, "test", callback.Func(func(callback.Notification) {})))
	require.NoError(t, d.coord.RequestState(ctx, "test", request.NewToken(), 1, 0))
	waitCommitted(t, d, 1)

	require.NoError(t, d.sim.SetState(2))
	waitCommitted(t, d, 2)
	info, err := d.coord.Info(ctx)
	require.NoError(t, err)
	assert.Empty(t, info.Requests)
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devstate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bridge:\n  addr: :7000\n"), 0o644))

	cfg, err := loadConfig(Flags{
		ConfigFile: path,
		Addr:       "127.0.0.1:7100",
		LogLevel:   "debug",
		History:    "h.db",
		MDNS:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7100", cfg.Bridge.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "h.db", cfg.Logging.HistoryDB)
	assert.True(t, cfg.Discovery.Enabled)

	_, err = loadConfig(Flags{LogLevel: "loud"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewPolicy(t *testing.T) {
	assert.IsType(t, policy.Immediate{}, newPolicy(config.PolicyConfig{}, discardLogger()))

	p := newPolicy(config.PolicyConfig{Delays: map[int]time.Duration{1: time.Second}}, discardLogger())
	delayed, ok := p.(*policy.Delayed)
	require.True(t, ok)
	assert.Equal(t, time.Second, delayed.DelayFor(1))
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSwitchWriter(t *testing.T) {
	var a, b bytes.Buffer
	w := &switchWriter{w: &a}
	_, _ = w.Write([]byte("one"))
	w.Set(&b)
	_, _ = w.Write([]byte("two"))
	assert.Equal(t, "one", a.String())
	assert.Equal(t, "two", b.String())
}
