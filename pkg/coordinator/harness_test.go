package coordinator_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foldsense/devstate-go/pkg/callback"
	"github.com/foldsense/devstate-go/pkg/coordinator"
	"github.com/foldsense/devstate-go/pkg/devicestate"
	"github.com/foldsense/devstate-go/pkg/log"
	"github.com/foldsense/devstate-go/pkg/policy"
	"github.com/foldsense/devstate-go/pkg/provider"
	"github.com/foldsense/devstate-go/pkg/request"
)

var (
	stateDefault = devicestate.New(0, "DEFAULT")
	stateOther   = devicestate.New(1, "OTHER")
	stateThird   = devicestate.New(2, "THIRD")
)

func allStates() []devicestate.DeviceState {
	return []devicestate.DeviceState{stateDefault, stateOther, stateThird}
}

// manualPolicy records configure calls and completes them on demand.
type manualPolicy struct {
	mu        sync.Mutex
	calls     []int
	callbacks []func()
}

func (p *manualPolicy) ConfigureDeviceForState(state int, onComplete func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, state)
	p.callbacks = append(p.callbacks, onComplete)
}

// complete invokes the completion of configure call i.
func (p *manualPolicy) complete(i int) {
	p.mu.Lock()
	cb := p.callbacks[i]
	p.mu.Unlock()
	cb()
}

func (p *manualPolicy) completeLast() {
	p.complete(p.callCount() - 1)
}

func (p *manualPolicy) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *manualPolicy) states() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.calls))
	copy(out, p.calls)
	return out
}

// recorder collects listener notifications.
type recorder struct {
	mu    sync.Mutex
	items []callback.Notification
}

func (r *recorder) listener() callback.Listener {
	return callback.Func(func(n callback.Notification) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.items = append(r.items, n)
	})
}

func (r *recorder) all() []callback.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]callback.Notification, len(r.items))
	copy(out, r.items)
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// eventRecorder is a thread-safe log.Logger.
type eventRecorder struct {
	mu     sync.Mutex
	events []log.Event
}

func (e *eventRecorder) Log(event log.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *eventRecorder) find(match func(log.Event) bool) []log.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []log.Event
	for _, ev := range e.events {
		if match(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func stateChanged(s devicestate.DeviceState) callback.Notification {
	return callback.Notification{Kind: callback.KindStateChanged, State: s}
}

func active(tok request.Token) callback.Notification {
	return callback.Notification{Kind: callback.KindRequestActive, Token: tok}
}

func suspended(tok request.Token) callback.Notification {
	return callback.Notification{Kind: callback.KindRequestSuspended, Token: tok}
}

func canceled(tok request.Token) callback.Notification {
	return callback.Notification{Kind: callback.KindRequestCanceled, Token: tok}
}

type harness struct {
	t      *testing.T
	c      *coordinator.Coordinator
	sim    *provider.Simulated
	events *eventRecorder
}

// newHarness starts a coordinator fed by a simulated provider that reports
// all states with DEFAULT as base.
func newHarness(t *testing.T, p policy.Configurer) *harness {
	t.Helper()
	return newHarnessWithConfig(t, p, coordinator.Config{})
}

func newHarnessWithConfig(t *testing.T, p policy.Configurer, cfg coordinator.Config) *harness {
	t.Helper()

	events := &eventRecorder{}
	cfg.EventLogger = events
	c := coordinator.New(cfg, p)
	require.NoError(t, c.Start())
	t.Cleanup(func() { _ = c.Stop() })

	sim, err := provider.NewSimulated(allStates(), stateDefault.Identifier)
	require.NoError(t, err)
	require.NoError(t, sim.SetListener(c))

	h := &harness{t: t, c: c, sim: sim, events: events}
	h.flush()
	return h
}

func (h *harness) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	h.t.Cleanup(cancel)
	return ctx
}

func (h *harness) flush() {
	h.t.Helper()
	require.NoError(h.t, h.c.Flush(h.ctx()))
}

func (h *harness) info() coordinator.Info {
	h.t.Helper()
	info, err := h.c.Info(h.ctx())
	require.NoError(h.t, err)
	return info
}

func (h *harness) register(client request.ClientID) *recorder {
	h.t.Helper()
	r := &recorder{}
	require.NoError(h.t, h.c.RegisterCallback(h.ctx(), client, r.listener()))
	h.flush()
	return r
}

func (h *harness) request(client request.ClientID, id int, flags request.Flags) request.Token {
	h.t.Helper()
	tok := request.NewToken()
	require.NoError(h.t, h.c.RequestState(h.ctx(), client, tok, id, flags))
	h.flush()
	return tok
}

func (h *harness) cancel(client request.ClientID, tok request.Token) {
	h.t.Helper()
	require.NoError(h.t, h.c.CancelRequest(h.ctx(), client, tok))
	h.flush()
}

func (h *harness) setBase(id int) {
	h.t.Helper()
	require.NoError(h.t, h.sim.SetState(id))
	h.flush()
}
