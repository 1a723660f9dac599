package devicestate

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Catalog errors.
var (
	ErrInvalidState = errors.New("invalid device state")
	ErrEmptyCatalog = errors.New("supported state set is empty")
)

// Catalog holds the currently supported set of device states.
// It is safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	states []DeviceState
	index  map[int]DeviceState
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{index: make(map[int]DeviceState)}
}

// Validate checks a supported-state list: it must be non-empty, every
// identifier must be in range and identifiers must be unique.
func Validate(states []DeviceState) error {
	if len(states) == 0 {
		return ErrEmptyCatalog
	}
	seen := make(map[int]bool, len(states))
	for _, s := range states {
		if !s.IsValid() {
			return fmt.Errorf("%w: identifier %d out of range", ErrInvalidState, s.Identifier)
		}
		if seen[s.Identifier] {
			return fmt.Errorf("%w: duplicate identifier %d", ErrInvalidState, s.Identifier)
		}
		seen[s.Identifier] = true
	}
	return nil
}

// Update replaces the supported set. The catalog is left untouched when
// the list fails validation.
func (c *Catalog) Update(states []DeviceState) error {
	if err := Validate(states); err != nil {
		return err
	}

	sorted := make([]DeviceState, len(states))
	copy(sorted, states)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Identifier < sorted[j].Identifier
	})

	index := make(map[int]DeviceState, len(sorted))
	for _, s := range sorted {
		index[s.Identifier] = s
	}

	c.mu.Lock()
	c.states = sorted
	c.index = index
	c.mu.Unlock()
	return nil
}

// IsSupported reports whether identifier is in the supported set.
func (c *Catalog) IsSupported(identifier int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.index[identifier]
	return ok
}

// Get returns the supported state with the given identifier.
func (c *Catalog) Get(identifier int) (DeviceState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.index[identifier]
	if !ok {
		return Invalid, false
	}
	return s, true
}

// Lookup is like Get but returns ErrInvalidState for unsupported identifiers.
func (c *Catalog) Lookup(identifier int) (DeviceState, error) {
	if identifier == InvalidIdentifier {
		return Invalid, fmt.Errorf("%w: sentinel identifier %d", ErrInvalidState, identifier)
	}
	s, ok := c.Get(identifier)
	if !ok {
		return Invalid, fmt.Errorf("%w: identifier %d is not supported", ErrInvalidState, identifier)
	}
	return s, nil
}

// States returns a copy of the supported set sorted by identifier.
func (c *Catalog) States() []DeviceState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]DeviceState, len(c.states))
	copy(out, c.states)
	return out
}

// Identifiers returns the supported identifiers in ascending order.
func (c *Catalog) Identifiers() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int, len(c.states))
	for i, s := range c.states {
		ids[i] = s.Identifier
	}
	return ids
}

// Len returns the number of supported states.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.states)
}
