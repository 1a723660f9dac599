package coordinator

import (
	"errors"
	"log/slog"
	"time"

	"github.com/foldsense/devstate-go/pkg/devicestate"
	"github.com/foldsense/devstate-go/pkg/log"
	"github.com/foldsense/devstate-go/pkg/request"
)

// Coordinator errors.
var (
	ErrNotRegistered       = errors.New("client has no registered callback")
	ErrNotStarted          = errors.New("coordinator not started")
	ErrAlreadyStarted      = errors.New("coordinator already started")
	ErrStopped             = errors.New("coordinator stopped")
	ErrConcurrentConfigure = errors.New("configuration requested while another is outstanding")

	// ErrInvalidState is returned for unsupported or sentinel states.
	ErrInvalidState = devicestate.ErrInvalidState
)

// lifecycle is the run state of a Coordinator.
type lifecycle uint8

const (
	lifecycleIdle lifecycle = iota
	lifecycleRunning
	lifecycleStopped
)

// Config configures a Coordinator.
type Config struct {
	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// EventLogger receives the structured event trace. Nil disables it.
	EventLogger log.Logger

	// SessionID tags trace events. Defaults to a random UUID.
	SessionID string

	// ConfigureWarnAfter logs a warning when a policy configuration has
	// not completed after this long. Zero disables the warning.
	ConfigureWarnAfter time.Duration
}

// DefaultConfigureWarnAfter is the stall warning threshold used by
// DefaultConfig.
const DefaultConfigureWarnAfter = 5 * time.Second

// DefaultConfig returns a Config with the stall warning enabled.
func DefaultConfig() Config {
	return Config{ConfigureWarnAfter: DefaultConfigureWarnAfter}
}

// Info is a consistent snapshot of the coordinator.
// Absent states are devicestate.Invalid.
type Info struct {
	Supported []devicestate.DeviceState
	Base      devicestate.DeviceState
	Committed devicestate.DeviceState
	Pending   devicestate.DeviceState
	Override  devicestate.DeviceState

	// Requests are the live requests in issue order.
	Requests []request.Request

	// Configuring is set while a policy configuration is outstanding.
	Configuring bool

	// Sequence is the number of configurations issued so far.
	Sequence uint64
}

// HasOverride reports whether a live request defines the override state.
func (i Info) HasOverride() bool {
	return i.Override.IsValid()
}
