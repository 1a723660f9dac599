package policy

import (
	"sync"
	"time"
)

// Configurer reconfigures the device for a target state.
type Configurer interface {
	// ConfigureDeviceForState starts configuring the device for state and
	// calls onComplete exactly once when done. onComplete may be called
	// synchronously or from another goroutine.
	ConfigureDeviceForState(state int, onComplete func())
}

// Immediate completes every configuration synchronously.
type Immediate struct{}

// ConfigureDeviceForState implements Configurer.
func (Immediate) ConfigureDeviceForState(_ int, onComplete func()) {
	onComplete()
}

// Compile-time interface satisfaction check.
var _ Configurer = Immediate{}

// DefaultDelay is the configuration time used by Delayed when no delay is
// configured.
const DefaultDelay = 200 * time.Millisecond

// Delayed completes configurations after a fixed per-state delay,
// simulating hardware that needs time to settle (hinge motors, display
// power sequencing).
type Delayed struct {
	mu sync.Mutex

	defaultDelay time.Duration
	delays       map[int]time.Duration

	pending int
	onIssue func(state int, delay time.Duration)
}

// NewDelayed creates a Delayed configurer. Per-state delays override
// defaultDelay; a zero defaultDelay means DefaultDelay.
func NewDelayed(defaultDelay time.Duration, delays map[int]time.Duration) *Delayed {
	if defaultDelay <= 0 {
		defaultDelay = DefaultDelay
	}
	d := &Delayed{
		defaultDelay: defaultDelay,
		delays:       make(map[int]time.Duration, len(delays)),
	}
	for state, delay := range delays {
		d.delays[state] = delay
	}
	return d
}

// DelayFor returns the configuration delay for state.
func (d *Delayed) DelayFor(state int) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if delay, ok := d.delays[state]; ok {
		return delay
	}
	return d.defaultDelay
}

// OnIssue sets a callback invoked whenever a configuration starts.
func (d *Delayed) OnIssue(fn func(state int, delay time.Duration)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onIssue = fn
}

// Pending returns the number of configurations that have not completed.
func (d *Delayed) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// ConfigureDeviceForState implements Configurer.
func (d *Delayed) ConfigureDeviceForState(state int, onComplete func()) {
	delay := d.DelayFor(state)

	d.mu.Lock()
	d.pending++
	onIssue := d.onIssue
	d.mu.Unlock()

	if onIssue != nil {
		onIssue(state, delay)
	}

	time.AfterFunc(delay, func() {
		d.mu.Lock()
		d.pending--
		d.mu.Unlock()
		onComplete()
	})
}

// Compile-time interface satisfaction check.
var _ Configurer = (*Delayed)(nil)
