// Package scenario describes error-handling scenarios in YAML and runs them
// through the engine so the mechanisms can be compared side by side.
package scenario

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ib-77/errflow/pkg/flow"
)

const (
	ModeSync  = "sync"
	ModeAsync = "async"

	ActionDivide   = "divide"
	ActionValidate = "validate"
	ActionFetch    = "fetch"

	CatchNone    = "none"
	CatchRecover = "recover"
	CatchRethrow = "rethrow"
	CatchObserve = "observe"
)

// Action is the fallible work a scenario performs.
type Action struct {
	Kind  string        `yaml:"kind" json:"kind"`
	A     int           `yaml:"a,omitempty" json:"a,omitempty"`
	B     int           `yaml:"b,omitempty" json:"b,omitempty"`
	Input string        `yaml:"input,omitempty" json:"input,omitempty"`
	Fail  bool          `yaml:"fail,omitempty" json:"fail,omitempty"`
	Delay time.Duration `yaml:"delay,omitempty" json:"delay,omitempty"`
}

type Scenario struct {
	Name         string `yaml:"name" json:"name"`
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
	Mode         string `yaml:"mode" json:"mode"`
	Action       Action `yaml:"action" json:"action"`
	Catch        string `yaml:"catch,omitempty" json:"catch,omitempty"`
	Finally      bool   `yaml:"finally,omitempty" json:"finally,omitempty"`
	FinallyFails bool   `yaml:"finally_fails,omitempty" json:"finally_fails,omitempty"`
	Cancel       bool   `yaml:"cancel,omitempty" json:"cancel,omitempty"`
}

type File struct {
	Scenarios []Scenario `yaml:"scenarios" json:"scenarios"`
}

// Load reads and validates a scenario file.
func Load(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) ([]Scenario, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}
	if len(f.Scenarios) == 0 {
		return nil, flow.New(flow.ValidationError, "no scenarios defined")
	}

	seen := make(map[string]bool, len(f.Scenarios))
	for i := range f.Scenarios {
		s := &f.Scenarios[i]
		s.applyDefaults()
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, flow.Newf(flow.ValidationError, "duplicate scenario name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return f.Scenarios, nil
}

func (s *Scenario) applyDefaults() {
	if s.Mode == "" {
		s.Mode = ModeSync
	}
	if s.Catch == "" {
		s.Catch = CatchNone
	}
	if s.FinallyFails {
		s.Finally = true
	}
}

// Validate checks that the scenario can be built.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return flow.New(flow.ValidationError, "scenario name is required")
	}

	switch s.Mode {
	case ModeSync, ModeAsync:
	default:
		return flow.Newf(flow.ValidationError, "scenario %s: unknown mode %q", s.Name, s.Mode)
	}

	switch s.Action.Kind {
	case ActionDivide, ActionValidate:
	case ActionFetch:
		if s.Mode != ModeAsync {
			return flow.Newf(flow.ValidationError, "scenario %s: fetch needs async mode", s.Name)
		}
	default:
		return flow.Newf(flow.ValidationError, "scenario %s: unknown action %q", s.Name, s.Action.Kind)
	}

	switch s.Catch {
	case CatchNone, CatchRecover, CatchRethrow, CatchObserve:
	default:
		return flow.Newf(flow.ValidationError, "scenario %s: unknown catch policy %q", s.Name, s.Catch)
	}

	if s.Cancel && s.Mode != ModeAsync {
		return flow.Newf(flow.ValidationError, "scenario %s: only async scenarios can be cancelled", s.Name)
	}
	if s.Action.Delay < 0 {
		return flow.Newf(flow.ValidationError, "scenario %s: delay must not be negative", s.Name)
	}
	return nil
}
