package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/foldsense/devstate-go/pkg/devicestate"
)

// Script errors.
var (
	ErrInvalidScript = errors.New("invalid provider script")
)

// Step is one scripted provider report.
type Step struct {
	// After is the wait before the step runs.
	After time.Duration `yaml:"after"`

	// State reports a new base state when set.
	State *int `yaml:"state,omitempty"`

	// Supported replaces the supported state set when non-empty.
	// Identifiers refer to the full state table handed to the runner.
	Supported []int `yaml:"supported,omitempty"`
}

// Script is a timeline of provider reports.
type Script struct {
	// Loop restarts the timeline after the last step.
	Loop bool `yaml:"loop"`

	// Steps are run in order.
	Steps []Step `yaml:"steps"`
}

// ParseScript decodes and validates a YAML script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScript reads a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScript(data)
}

// Validate checks that every step does exactly one thing.
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScript)
	}
	for i, step := range s.Steps {
		if step.After < 0 {
			return fmt.Errorf("%w: step %d has negative delay", ErrInvalidScript, i)
		}
		hasState := step.State != nil
		hasSupported := len(step.Supported) > 0
		if hasState == hasSupported {
			return fmt.Errorf("%w: step %d must set exactly one of state or supported", ErrInvalidScript, i)
		}
	}
	if s.Loop && s.totalDelay() == 0 {
		return fmt.Errorf("%w: looping script needs a non-zero delay", ErrInvalidScript)
	}
	return nil
}

func (s *Script) totalDelay() time.Duration {
	var total time.Duration
	for _, step := range s.Steps {
		total += step.After
	}
	return total
}

// Runner replays a Script against a Simulated provider.
type Runner struct {
	script *Script
	target *Simulated
	table  map[int]devicestate.DeviceState
	logger *slog.Logger
}

// NewRunner creates a runner. table lists every state a step may name.
func NewRunner(script *Script, target *Simulated, table []devicestate.DeviceState, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	idx := make(map[int]devicestate.DeviceState, len(table))
	for _, s := range table {
		idx[s.Identifier] = s
	}
	return &Runner{script: script, target: target, table: idx, logger: logger}
}

// Run executes the script until it ends or ctx is canceled. Report errors
// are logged and do not stop the script.
func (r *Runner) Run(ctx context.Context) error {
	for {
		for i, step := range r.script.Steps {
			if step.After > 0 {
				timer := time.NewTimer(step.After)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			} else if ctx.Err() != nil {
				return ctx.Err()
			}

			if err := r.apply(step); err != nil {
				r.logger.Warn("script step rejected", slog.Int("step", i), slog.Any("error", err))
			}
		}
		if !r.script.Loop {
			return nil
		}
	}
}

// apply performs one step.
func (r *Runner) apply(step Step) error {
	if step.State != nil {
		r.logger.Debug("script reports state", slog.Int("state", *step.State))
		return r.target.SetState(*step.State)
	}

	states := make([]devicestate.DeviceState, 0, len(step.Supported))
	for _, id := range step.Supported {
		s, ok := r.table[id]
		if !ok {
			return fmt.Errorf("%w: state %d not in state table", ErrInvalidScript, id)
		}
		states = append(states, s)
	}
	r.logger.Debug("script reports supported states", slog.Any("states", step.Supported))
	return r.target.SetSupportedStates(states)
}
