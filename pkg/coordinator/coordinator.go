package coordinator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foldsense/devstate-go/pkg/callback"
	"github.com/foldsense/devstate-go/pkg/devicestate"
	"github.com/foldsense/devstate-go/pkg/log"
	"github.com/foldsense/devstate-go/pkg/policy"
	"github.com/foldsense/devstate-go/pkg/request"
)

// op is one mailbox entry. reply is nil for events nobody waits on.
type op struct {
	run   func() error
	reply chan error
}

// Coordinator owns the device state machine.
type Coordinator struct {
	config Config
	logger *slog.Logger
	events log.Logger
	policy policy.Configurer

	catalog  *devicestate.Catalog
	registry *request.Registry
	hub      *callback.Hub

	// Loop-owned state
	base        devicestate.DeviceState
	committed   devicestate.DeviceState
	pending     devicestate.DeviceState
	configuring bool
	seq         uint64
	issuedAt    time.Time
	stallTimer  *time.Timer

	// Mailbox
	mu     sync.Mutex
	queue  []op
	signal chan struct{}
	state  lifecycle
	quit   chan struct{}
	wg     sync.WaitGroup
}

// New creates a coordinator that configures the device through p.
func New(cfg Config, p policy.Configurer) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	events := cfg.EventLogger
	if events == nil {
		events = log.NoopLogger{}
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	return &Coordinator{
		config:    cfg,
		logger:    logger,
		events:    events,
		policy:    p,
		catalog:   devicestate.NewCatalog(),
		registry:  request.NewRegistry(),
		hub:       callback.NewHub(logger),
		base:      devicestate.Invalid,
		committed: devicestate.Invalid,
		pending:   devicestate.Invalid,
		signal:    make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}
}

// SessionID returns the session identifier used in trace events.
func (c *Coordinator) SessionID() string {
	return c.config.SessionID
}

// Start begins processing events. A coordinator cannot be restarted.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case lifecycleRunning:
		return ErrAlreadyStarted
	case lifecycleStopped:
		return ErrStopped
	}
	c.state = lifecycleRunning

	c.hub.Start()
	c.wg.Add(1)
	go c.loop()

	c.logger.Info("coordinator started", "session", c.config.SessionID)
	return nil
}

// Stop ends event processing. Events still queued fail with ErrStopped and
// undelivered notifications are dropped. A configuration in flight is
// abandoned; its completion is ignored.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if c.state != lifecycleRunning {
		c.mu.Unlock()
		return ErrNotStarted
	}
	c.state = lifecycleStopped
	c.mu.Unlock()

	close(c.quit)
	c.wg.Wait()

	c.mu.Lock()
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()
	for _, o := range pending {
		if o.reply != nil {
			o.reply <- ErrStopped
		}
	}

	if c.stallTimer != nil {
		c.stallTimer.Stop()
	}
	c.hub.Stop()

	c.logger.Info("coordinator stopped", "session", c.config.SessionID)
	return nil
}

// enqueue appends o to the mailbox.
func (c *Coordinator) enqueue(o op) error {
	c.mu.Lock()
	switch c.state {
	case lifecycleIdle:
		c.mu.Unlock()
		return ErrNotStarted
	case lifecycleStopped:
		c.mu.Unlock()
		return ErrStopped
	}
	c.queue = append(c.queue, o)
	c.mu.Unlock()

	select {
	case c.signal <- struct{}{}:
	default:
	}
	return nil
}

// post runs fn on the loop and waits for its result. If ctx ends first the
// event still runs; only the wait is abandoned.
func (c *Coordinator) post(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	if err := c.enqueue(op{run: fn, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// postAsync queues fn without waiting. Events posted after Stop are
// dropped.
func (c *Coordinator) postAsync(fn func()) {
	err := c.enqueue(op{run: func() error { fn(); return nil }})
	if err != nil {
		c.logger.Debug("dropping event", "error", err)
	}
}

// pop removes the next mailbox entry.
func (c *Coordinator) pop() (op, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return op{}, false
	}
	o := c.queue[0]
	c.queue[0] = op{}
	c.queue = c.queue[1:]
	return o, true
}

// queued returns the number of mailbox entries.
func (c *Coordinator) queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// loop is the single consumer of the mailbox.
func (c *Coordinator) loop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.quit:
			return
		case <-c.signal:
		}

		for {
			select {
			case <-c.quit:
				return
			default:
			}
			o, ok := c.pop()
			if !ok {
				break
			}
			err := o.run()
			if o.reply != nil {
				o.reply <- err
			}
		}
	}
}
