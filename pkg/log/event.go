package log

import "time"

// Event represents one coordinator trace event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the coordinator run that produced the event.
	SessionID string `cbor:"2,keyasint"`

	// Source is the party that caused the event.
	Source Source `cbor:"3,keyasint"`

	// Category selects the payload.
	Category Category `cbor:"4,keyasint"`

	// ClientID is the client involved, if any.
	ClientID string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"`
	Request     *RequestEvent     `cbor:"11,keyasint,omitempty"`
	Policy      *PolicyEvent      `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Source indicates who caused an event.
type Source uint8

const (
	// SourceProvider is the device state provider.
	SourceProvider Source = 0
	// SourceClient is a registered client.
	SourceClient Source = 1
	// SourcePolicy is the policy configurer.
	SourcePolicy Source = 2
	// SourceCoordinator is the coordinator itself.
	SourceCoordinator Source = 3
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceProvider:
		return "PROVIDER"
	case SourceClient:
		return "CLIENT"
	case SourcePolicy:
		return "POLICY"
	case SourceCoordinator:
		return "COORDINATOR"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a state change.
	CategoryState Category = 0
	// CategoryRequest indicates an override request action.
	CategoryRequest Category = 1
	// CategoryPolicy indicates a policy configuration phase.
	CategoryPolicy Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryRequest:
		return "REQUEST"
	case CategoryPolicy:
		return "POLICY"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures a change of one of the coordinator's states.
// Identifiers of -1 mean the state is absent.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// Old is the previous state identifier.
	Old int `cbor:"2,keyasint"`

	// New is the new state identifier.
	New int `cbor:"3,keyasint"`

	// OldName and NewName are the state names, when known.
	OldName string `cbor:"4,keyasint,omitempty"`
	NewName string `cbor:"5,keyasint,omitempty"`

	// Supported lists identifiers for StateEntitySupported changes.
	Supported []int `cbor:"6,keyasint,omitempty"`

	// Reason for the change (if available).
	Reason string `cbor:"7,keyasint,omitempty"`
}

// StateEntity indicates which state changed.
type StateEntity uint8

const (
	// StateEntityBase is the provider-reported state.
	StateEntityBase StateEntity = 0
	// StateEntityCommitted is the state the device is configured for.
	StateEntityCommitted StateEntity = 1
	// StateEntityPending is the state being configured.
	StateEntityPending StateEntity = 2
	// StateEntitySupported is the supported state set.
	StateEntitySupported StateEntity = 3
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityBase:
		return "BASE"
	case StateEntityCommitted:
		return "COMMITTED"
	case StateEntityPending:
		return "PENDING"
	case StateEntitySupported:
		return "SUPPORTED"
	default:
		return "UNKNOWN"
	}
}

// RequestEvent captures an override request action.
type RequestEvent struct {
	// Token identifies the request.
	Token string `cbor:"1,keyasint"`

	// State is the requested state identifier.
	State int `cbor:"2,keyasint"`

	// Flags are the request flags.
	Flags uint32 `cbor:"3,keyasint,omitempty"`

	// Action performed on the request.
	Action RequestAction `cbor:"4,keyasint"`

	// Reason for the action (if available).
	Reason string `cbor:"5,keyasint,omitempty"`
}

// RequestAction indicates what happened to a request.
type RequestAction uint8

const (
	// RequestIssued indicates the request was accepted.
	RequestIssued RequestAction = 0
	// RequestActivated indicates the request became the active override.
	RequestActivated RequestAction = 1
	// RequestSuspended indicates a newer request displaced it.
	RequestSuspended RequestAction = 2
	// RequestCanceled indicates the request ended.
	RequestCanceled RequestAction = 3
	// RequestRejected indicates the request was refused.
	RequestRejected RequestAction = 4
)

// String returns the request action name.
func (a RequestAction) String() string {
	switch a {
	case RequestIssued:
		return "ISSUED"
	case RequestActivated:
		return "ACTIVATED"
	case RequestSuspended:
		return "SUSPENDED"
	case RequestCanceled:
		return "CANCELED"
	case RequestRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// PolicyEvent captures a policy configuration phase.
type PolicyEvent struct {
	// Phase of the configuration.
	Phase PolicyPhase `cbor:"1,keyasint"`

	// State is the state being configured.
	State int `cbor:"2,keyasint"`

	// Sequence numbers configurations within a session.
	Sequence uint64 `cbor:"3,keyasint"`

	// Elapsed is the time since the configuration was issued
	// (completed and stalled phases). Stored as nanoseconds.
	Elapsed *time.Duration `cbor:"4,keyasint,omitempty"`
}

// PolicyPhase indicates the configuration phase.
type PolicyPhase uint8

const (
	// PolicyIssued indicates the policy was asked to configure.
	PolicyIssued PolicyPhase = 0
	// PolicyCompleted indicates the policy reported completion.
	PolicyCompleted PolicyPhase = 1
	// PolicyStalled indicates a configuration is taking unusually long.
	PolicyStalled PolicyPhase = 2
)

// String returns the policy phase name.
func (p PolicyPhase) String() string {
	switch p {
	case PolicyIssued:
		return "ISSUED"
	case PolicyCompleted:
		return "COMPLETED"
	case PolicyStalled:
		return "STALLED"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures a rejected operation.
type ErrorEventData struct {
	// Operation that failed.
	Operation string `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// State is the state identifier involved, if any.
	State *int `cbor:"3,keyasint,omitempty"`
}
