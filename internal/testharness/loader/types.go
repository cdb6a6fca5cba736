// Package loader provides YAML scenario loading for the emulator test harness.
package loader

import "strconv"

// Scenario is a single test case loaded from YAML.
type Scenario struct {
	// ID is the unique scenario identifier (e.g., "TC-OPFAIL-001").
	ID string `yaml:"id"`

	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Steps are the actions to execute in order.
	Steps []Step `yaml:"steps"`

	// Timeout is the maximum duration for the scenario (e.g., "30s").
	Timeout string `yaml:"timeout,omitempty"`

	// Tags for selecting scenarios.
	Tags []string `yaml:"tags,omitempty"`

	Skip       bool   `yaml:"skip,omitempty"`
	SkipReason string `yaml:"skip_reason,omitempty"`
}

// Step is a single action in a scenario.
type Step struct {
	// Action names the handler to run (e.g., "control", "connect", "send").
	Action string `yaml:"action"`

	// Params are parameters for the action.
	Params map[string]any `yaml:"params,omitempty"`

	// Expect maps output keys to expected values.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Timeout overrides the engine step timeout.
	Timeout string `yaml:"timeout,omitempty"`

	Description string `yaml:"description,omitempty"`
}

// LoadError provides details about a scenario loading error.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Line is the line number where the error occurred (0 if unknown).
	Line int

	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.File == "" {
		return msg
	}
	if e.Line > 0 {
		return e.File + ":" + strconv.Itoa(e.Line) + ": " + msg
	}
	return e.File + ": " + msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
