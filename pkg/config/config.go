package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/foldsense/devstate-go/pkg/devicestate"
)

// ErrInvalidConfig is wrapped by all validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the daemon configuration.
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	Policy     PolicyConfig     `yaml:"policy"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Logging    LoggingConfig    `yaml:"logging"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// DeviceConfig describes the simulated device.
type DeviceConfig struct {
	// Name is the device name, used as the mDNS instance name.
	Name string `yaml:"name"`

	// States is the initial supported state set.
	States []StateConfig `yaml:"states"`

	// InitialState is the base state reported at startup.
	InitialState int `yaml:"initial_state"`

	// StateFile is where the last committed state is saved. Empty disables
	// persistence.
	StateFile string `yaml:"state_file"`
}

// StateConfig is one device state.
type StateConfig struct {
	ID    int      `yaml:"id"`
	Name  string   `yaml:"name"`
	Flags []string `yaml:"flags,omitempty"`
}

// PolicyConfig configures the simulated policy configurer.
type PolicyConfig struct {
	// DefaultDelay is how long configuring a state takes. Zero completes
	// immediately.
	DefaultDelay time.Duration `yaml:"default_delay"`

	// Delays overrides DefaultDelay per state identifier.
	Delays map[int]time.Duration `yaml:"delays,omitempty"`

	// WarnAfter is how long a configuration may stay outstanding before
	// it is reported as stalled.
	WarnAfter time.Duration `yaml:"warn_after"`
}

// BridgeConfig configures the WebSocket bridge.
type BridgeConfig struct {
	// Addr is the listen address. Empty disables the bridge.
	Addr string `yaml:"addr"`

	// TokenHash is a bcrypt hash of the bearer token. Empty disables auth.
	TokenHash string `yaml:"token_hash,omitempty"`

	// RequestRate is the sustained per-client request rate per second.
	RequestRate float64 `yaml:"request_rate"`

	// RequestBurst is the per-client burst size.
	RequestBurst int `yaml:"request_burst"`
}

// DiscoveryConfig configures mDNS advertising.
type DiscoveryConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interface string        `yaml:"interface,omitempty"`
	TTL       time.Duration `yaml:"ttl"`
}

// LoggingConfig configures logging outputs.
type LoggingConfig struct {
	// Level is the slog level: debug, info, warn or error.
	Level string `yaml:"level"`

	// EventLog is a CBOR event log path. Empty disables it.
	EventLog string `yaml:"event_log,omitempty"`

	// HistoryDB is a SQLite history database path. Empty disables it.
	HistoryDB string `yaml:"history_db,omitempty"`
}

// SimulationConfig configures scripted provider behavior.
type SimulationConfig struct {
	// Script is a provider script path. Empty disables scripting.
	Script string `yaml:"script,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name: "devstate",
			States: []StateConfig{
				{ID: 0, Name: "DEFAULT"},
				{ID: 1, Name: "OTHER"},
			},
			InitialState: 0,
		},
		Policy: PolicyConfig{
			WarnAfter: 5 * time.Second,
		},
		Bridge: BridgeConfig{
			Addr:         ":8650",
			RequestRate:  20,
			RequestBurst: 40,
		},
		Discovery: DiscoveryConfig{
			TTL: 120 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Message: err.Error(), Cause: err}
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return nil, err
	}
	return cfg, nil
}

// States converts the configured states. Flags must have been validated.
func (c *Config) States() []devicestate.DeviceState {
	states := make([]devicestate.DeviceState, 0, len(c.Device.States))
	for _, s := range c.Device.States {
		ds := devicestate.New(s.ID, s.Name)
		for _, name := range s.Flags {
			f, err := devicestate.ParseStateFlag(name)
			if err == nil {
				ds.Flags |= f
			}
		}
		states = append(states, ds)
	}
	return states
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	for _, s := range c.Device.States {
		for _, name := range s.Flags {
			if _, err := devicestate.ParseStateFlag(name); err != nil {
				return fmt.Errorf("%w: state %d: %v", ErrInvalidConfig, s.ID, err)
			}
		}
	}

	states := c.States()
	if err := devicestate.Validate(states); err != nil {
		return fmt.Errorf("%w: device.states: %v", ErrInvalidConfig, err)
	}

	found := false
	for _, s := range states {
		if s.Identifier == c.Device.InitialState {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: device.initial_state %d is not a configured state", ErrInvalidConfig, c.Device.InitialState)
	}

	if c.Policy.DefaultDelay < 0 || c.Policy.WarnAfter < 0 {
		return fmt.Errorf("%w: policy delays must not be negative", ErrInvalidConfig)
	}
	for id, d := range c.Policy.Delays {
		if d < 0 {
			return fmt.Errorf("%w: policy.delays[%d] is negative", ErrInvalidConfig, id)
		}
	}

	if c.Bridge.RequestRate < 0 || c.Bridge.RequestBurst < 0 {
		return fmt.Errorf("%w: bridge rate limits must not be negative", ErrInvalidConfig)
	}
	if c.Bridge.RequestRate > 0 && c.Bridge.RequestBurst == 0 {
		return fmt.Errorf("%w: bridge.request_burst must be set with request_rate", ErrInvalidConfig)
	}
	if c.Bridge.TokenHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Bridge.TokenHash)); err != nil {
			return fmt.Errorf("%w: bridge.token_hash: %v", ErrInvalidConfig, err)
		}
	}

	if c.Discovery.Enabled && c.Bridge.Addr == "" {
		return fmt.Errorf("%w: discovery requires the bridge", ErrInvalidConfig)
	}
	if c.Discovery.TTL < 0 {
		return fmt.Errorf("%w: discovery.ttl is negative", ErrInvalidConfig)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q", ErrInvalidConfig, c.Logging.Level)
	}

	return nil
}

// LoadError provides details about a configuration loading error.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	if e.File == "" {
		return e.Message
	}
	return e.File + ": " + e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
