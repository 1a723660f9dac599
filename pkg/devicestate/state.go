package devicestate

import (
	"fmt"
	"strings"
)

// Identifier bounds.
const (
	// InvalidIdentifier is the identifier of the sentinel invalid state.
	InvalidIdentifier = -1

	// MinIdentifier is the smallest valid state identifier.
	MinIdentifier = 0

	// MaxIdentifier is the largest valid state identifier.
	MaxIdentifier = 255
)

// StateFlags is a bit set of per-state properties.
type StateFlags uint32

const (
	// FlagCancelOverrideRequests cancels every live override request when
	// the device enters this state as its base state.
	FlagCancelOverrideRequests StateFlags = 1 << 0

	// knownStateFlags masks all defined flags.
	knownStateFlags = FlagCancelOverrideRequests
)

// String returns a readable list of the set flags.
func (f StateFlags) String() string {
	if f == 0 {
		return "NONE"
	}
	var parts []string
	if f&FlagCancelOverrideRequests != 0 {
		parts = append(parts, "CANCEL_OVERRIDE_REQUESTS")
	}
	if rest := f &^ knownStateFlags; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseStateFlag parses a flag name as used in configuration files.
func ParseStateFlag(name string) (StateFlags, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cancel_override_requests", "cancel-override-requests":
		return FlagCancelOverrideRequests, nil
	default:
		return 0, fmt.Errorf("unknown state flag %q", name)
	}
}

// DeviceState is an immutable device state value.
type DeviceState struct {
	// Identifier uniquely identifies the state (MinIdentifier..MaxIdentifier).
	Identifier int

	// Name is a human-readable name such as "CLOSED".
	Name string

	// Flags holds per-state properties.
	Flags StateFlags
}

// Invalid is the sentinel invalid state. It also marks an absent state.
var Invalid = DeviceState{Identifier: InvalidIdentifier, Name: "INVALID"}

// New creates a device state without flags.
func New(identifier int, name string) DeviceState {
	return DeviceState{Identifier: identifier, Name: name}
}

// IsValid reports whether s is a real state and not the sentinel.
func (s DeviceState) IsValid() bool {
	return s.Identifier >= MinIdentifier && s.Identifier <= MaxIdentifier
}

// Equal compares states by identifier.
func (s DeviceState) Equal(other DeviceState) bool {
	return s.Identifier == other.Identifier
}

// HasFlag reports whether all bits of flag are set on s.
func (s DeviceState) HasFlag(flag StateFlags) bool {
	return s.Flags&flag == flag
}

// String returns "NAME(id)".
func (s DeviceState) String() string {
	if !s.IsValid() {
		return "INVALID"
	}
	if s.Name == "" {
		return fmt.Sprintf("STATE(%d)", s.Identifier)
	}
	return fmt.Sprintf("%s(%d)", s.Name, s.Identifier)
}
