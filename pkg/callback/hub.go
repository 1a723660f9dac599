package callback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/foldsense/devstate-go/pkg/devicestate"
	"github.com/foldsense/devstate-go/pkg/request"
)

// Hub errors.
var (
	ErrAlreadyRegistered = errors.New("client already has a registered callback")
	ErrNilListener       = errors.New("listener must not be nil")
	ErrNotRunning        = errors.New("callback hub not running")
)

// entry is one registered listener.
type entry struct {
	client   request.ClientID
	listener Listener
	removed  bool
}

// delivery is one queued notification, or a flush barrier when barrier is set.
type delivery struct {
	target  *entry
	n       Notification
	barrier chan struct{}
}

// Hub fans notifications out to registered listeners.
type Hub struct {
	mu sync.Mutex

	// Registered listeners in registration order
	entries  []*entry
	byClient map[request.ClientID]*entry

	// Delivery queue
	queue  []delivery
	signal chan struct{}

	// Background delivery
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	logger *slog.Logger
}

// NewHub creates a hub. A nil logger discards log output.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		byClient: make(map[request.ClientID]*entry),
		signal:   make(chan struct{}, 1),
		logger:   logger,
	}
}

// Start begins background delivery.
func (h *Hub) Start() {
	if h.running.Swap(true) {
		return
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.wg.Add(1)
	go h.deliverLoop()
}

// Stop ends background delivery. Undelivered notifications are dropped
// and pending flushes are released.
func (h *Hub) Stop() {
	if !h.running.Swap(false) {
		return
	}
	h.cancel()
	h.wg.Wait()

	h.mu.Lock()
	pending := h.queue
	h.queue = nil
	h.mu.Unlock()

	for _, d := range pending {
		if d.barrier != nil {
			close(d.barrier)
		}
	}
}

// Register adds a listener for client and queues the initial state
// notification with current, unless current is invalid.
func (h *Hub) Register(client request.ClientID, l Listener, current devicestate.DeviceState) error {
	if l == nil {
		return ErrNilListener
	}

	h.mu.Lock()
	if _, exists := h.byClient[client]; exists {
		h.mu.Unlock()
		return ErrAlreadyRegistered
	}

	e := &entry{client: client, listener: l}
	h.entries = append(h.entries, e)
	h.byClient[client] = e

	if current.IsValid() {
		h.queue = append(h.queue, delivery{
			target: e,
			n:      Notification{Kind: KindStateChanged, State: current},
		})
	}
	h.mu.Unlock()

	h.wake()
	return nil
}

// Unregister removes the listener of client. Notifications still queued
// for it are dropped. Returns false if client was not registered.
func (h *Hub) Unregister(client request.ClientID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, exists := h.byClient[client]
	if !exists {
		return false
	}

	e.removed = true
	delete(h.byClient, client)
	for i, o := range h.entries {
		if o == e {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			break
		}
	}
	return true
}

// IsRegistered reports whether client has a registered listener.
func (h *Hub) IsRegistered(client request.ClientID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.byClient[client]
	return ok
}

// Clients returns the registered clients in registration order.
func (h *Hub) Clients() []request.ClientID {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]request.ClientID, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.client
	}
	return out
}

// NotifyStateChanged queues a state change for every registered listener.
func (h *Hub) NotifyStateChanged(state devicestate.DeviceState) {
	h.mu.Lock()
	for _, e := range h.entries {
		h.queue = append(h.queue, delivery{
			target: e,
			n:      Notification{Kind: KindStateChanged, State: state},
		})
	}
	h.mu.Unlock()

	h.wake()
}

// NotifyRequestStatus queues a request status notification for client.
// It is dropped when client is not registered.
func (h *Hub) NotifyRequestStatus(client request.ClientID, token request.Token, status request.Status) {
	h.mu.Lock()
	e, ok := h.byClient[client]
	if !ok {
		h.mu.Unlock()
		return
	}
	h.queue = append(h.queue, delivery{
		target: e,
		n:      Notification{Kind: KindForStatus(status), Token: token},
	})
	h.mu.Unlock()

	h.wake()
}

// Flush waits until every notification queued before the call has been
// delivered.
func (h *Hub) Flush(ctx context.Context) error {
	if !h.running.Load() {
		return ErrNotRunning
	}

	done := make(chan struct{})
	h.mu.Lock()
	h.queue = append(h.queue, delivery{barrier: done})
	h.mu.Unlock()
	h.wake()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wake signals the delivery goroutine without blocking.
func (h *Hub) wake() {
	select {
	case h.signal <- struct{}{}:
	default:
	}
}

// pop removes the next queued delivery.
func (h *Hub) pop() (delivery, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.queue) == 0 {
		return delivery{}, false
	}
	d := h.queue[0]
	h.queue[0] = delivery{}
	h.queue = h.queue[1:]
	return d, true
}

// deliverLoop runs the background delivery.
func (h *Hub) deliverLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.signal:
		}

		for {
			if h.ctx.Err() != nil {
				return
			}
			d, ok := h.pop()
			if !ok {
				break
			}
			h.deliver(d)
		}
	}
}

// deliver hands one notification to its listener.
func (h *Hub) deliver(d delivery) {
	if d.barrier != nil {
		close(d.barrier)
		return
	}

	h.mu.Lock()
	removed := d.target.removed
	h.mu.Unlock()
	if removed {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("listener panicked",
				slog.String("client", string(d.target.client)),
				slog.String("notification", d.n.String()),
				slog.Any("panic", r))
		}
	}()
	Dispatch(d.target.listener, d.n)
}
