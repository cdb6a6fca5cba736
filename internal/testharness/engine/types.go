// Package engine executes loaded scenarios step by step.
package engine

import (
	"context"
	"time"

	"github.com/cbmock/cbmock-go/internal/testharness/loader"
)

// TestResult is the outcome of a single scenario.
type TestResult struct {
	Scenario *loader.Scenario

	// Passed indicates if all steps passed.
	Passed bool

	// Error is the error that caused failure, if any.
	Error error

	StepResults []*StepResult

	Duration  time.Duration
	StartTime time.Time
	EndTime   time.Time

	Skipped    bool
	SkipReason string
}

// StepResult is the outcome of a single step.
type StepResult struct {
	Step *loader.Step

	// StepIndex is the index of this step (0-based).
	StepIndex int

	Passed bool
	Error  error

	// ExpectResults maps expectation keys to their results.
	ExpectResults map[string]*ExpectResult

	Duration time.Duration

	// Output contains the values the handler produced.
	Output map[string]any
}

// ExpectResult is the result of checking one expectation.
type ExpectResult struct {
	Key      string
	Expected any
	Actual   any
	Passed   bool
	Message  string
}

// SuiteResult is the outcome of running several scenarios.
type SuiteResult struct {
	SuiteName string
	Results   []*TestResult

	PassCount int
	FailCount int
	SkipCount int

	Duration time.Duration
}

// ActionHandler runs a step action. The returned outputs are stored in the
// execution state for later steps and expectations.
type ActionHandler func(ctx context.Context, step *loader.Step, state *ExecutionState) (map[string]any, error)

// ExpectChecker checks an expectation against the execution state.
type ExpectChecker func(key string, expected any, state *ExecutionState) *ExpectResult

// ExecutionState holds state during scenario execution.
type ExecutionState struct {
	// Outputs accumulated from previous steps.
	Outputs map[string]any

	// Custom state handlers can use, such as open connections.
	Custom map[string]any

	Context context.Context
}

// NewExecutionState creates a new execution state.
func NewExecutionState(ctx context.Context) *ExecutionState {
	return &ExecutionState{
		Outputs: make(map[string]any),
		Custom:  make(map[string]any),
		Context: ctx,
	}
}

// Get retrieves a value from outputs. A "{{ key }}" reference is resolved
// to key.
func (s *ExecutionState) Get(key string) (any, bool) {
	if m := variablePattern.FindStringSubmatch(key); m != nil && isPureVariableRef(key) {
		key = m[1]
	}
	v, ok := s.Outputs[key]
	return v, ok
}

// Set stores a value in outputs.
func (s *ExecutionState) Set(key string, value any) {
	s.Outputs[key] = value
}

// Config configures the engine.
type Config struct {
	// DefaultTimeout applies to scenarios without a timeout.
	DefaultTimeout time.Duration

	// StepTimeout applies to steps without a timeout.
	StepTimeout time.Duration

	// StopOnFirstFailure stops a suite after the first failed scenario.
	StopOnFirstFailure bool

	// Setup runs before the steps of each scenario.
	Setup func(ctx context.Context, sc *loader.Scenario, state *ExecutionState) error

	// Teardown runs after each scenario, also when it failed.
	Teardown func(state *ExecutionState)

	// OnTestComplete is called after each scenario of a suite.
	OnTestComplete func(result *TestResult)
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultTimeout: 30 * time.Second,
		StepTimeout:    10 * time.Second,
	}
}
