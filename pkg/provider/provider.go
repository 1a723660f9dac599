package provider

import (
	"errors"
	"fmt"
	"sync"

	"github.com/foldsense/devstate-go/pkg/devicestate"
)

// Provider errors.
var (
	ErrNoListener = errors.New("provider has no listener")
)

// Listener receives provider reports.
type Listener interface {
	// OnSupportedStatesChanged replaces the supported state set.
	OnSupportedStatesChanged(states []devicestate.DeviceState) error

	// OnStateChanged reports a new base state.
	OnStateChanged(identifier int) error
}

// Provider is a source of device state reports.
type Provider interface {
	// SetListener installs the listener and immediately reports the
	// supported states and the current state to it.
	SetListener(l Listener) error
}

// Simulated is a provider driven programmatically.
type Simulated struct {
	mu sync.Mutex

	states   []devicestate.DeviceState
	current  int
	listener Listener
}

// NewSimulated creates a simulated provider starting in initial, which must
// be one of states.
func NewSimulated(states []devicestate.DeviceState, initial int) (*Simulated, error) {
	if err := devicestate.Validate(states); err != nil {
		return nil, err
	}
	found := false
	for _, s := range states {
		if s.Identifier == initial {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: initial state %d is not supported", devicestate.ErrInvalidState, initial)
	}

	cp := make([]devicestate.DeviceState, len(states))
	copy(cp, states)
	return &Simulated{states: cp, current: initial}, nil
}

// SetListener implements Provider.
func (p *Simulated) SetListener(l Listener) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.listener = l
	if l == nil {
		return nil
	}
	if err := l.OnSupportedStatesChanged(p.copyStates()); err != nil {
		return err
	}
	return l.OnStateChanged(p.current)
}

// SetState reports identifier as the new base state. The stored current
// state only changes when the listener accepts it.
func (p *Simulated) SetState(identifier int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.listener == nil {
		return ErrNoListener
	}
	if err := p.listener.OnStateChanged(identifier); err != nil {
		return err
	}
	p.current = identifier
	return nil
}

// SetSupportedStates reports a new supported state set.
func (p *Simulated) SetSupportedStates(states []devicestate.DeviceState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.listener == nil {
		return ErrNoListener
	}
	cp := make([]devicestate.DeviceState, len(states))
	copy(cp, states)
	if err := p.listener.OnSupportedStatesChanged(cp); err != nil {
		return err
	}
	p.states = cp
	return nil
}

// State returns the last accepted base state.
func (p *Simulated) State() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// SupportedStates returns the last reported supported states.
func (p *Simulated) SupportedStates() []devicestate.DeviceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyStates()
}

func (p *Simulated) copyStates() []devicestate.DeviceState {
	out := make([]devicestate.DeviceState, len(p.states))
	copy(out, p.states)
	return out
}

// Compile-time interface satisfaction check.
var _ Provider = (*Simulated)(nil)
