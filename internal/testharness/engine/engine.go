package engine

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/cbmock/cbmock-go/internal/testharness/loader"
)

// Engine executes scenarios.
type Engine struct {
	config   *Config
	handlers map[string]ActionHandler
	checkers map[string]ExpectChecker
	mu       sync.RWMutex
}

// New creates an engine with the default configuration.
func New() *Engine {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an engine with the given configuration.
func NewWithConfig(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}

	e := &Engine{
		config:   config,
		handlers: make(map[string]ActionHandler),
		checkers: make(map[string]ExpectChecker),
	}

	e.RegisterChecker(CheckerNameDefault, defaultChecker)
	e.RegisterChecker(CheckerNameContains, CheckerContains)
	e.RegisterChecker(CheckerNameValueIn, CheckerValueIn)
	e.RegisterChecker(CheckerNameSaveAs, CheckerSaveAs)
	e.RegisterChecker(CheckerNameErrorContains, CheckerErrorContains)

	return e
}

// RegisterHandler registers an action handler.
func (e *Engine) RegisterHandler(action string, handler ActionHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[action] = handler
}

// RegisterChecker registers an expectation checker.
func (e *Engine) RegisterChecker(key string, checker ExpectChecker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkers[key] = checker
}

// Run executes a single scenario.
func (e *Engine) Run(ctx context.Context, sc *loader.Scenario) *TestResult {
	result := &TestResult{
		Scenario:  sc,
		StartTime: time.Now(),
	}
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
	}()

	if sc.Skip {
		result.Skipped = true
		result.SkipReason = sc.SkipReason
		if result.SkipReason == "" {
			result.SkipReason = "skipped by scenario definition"
		}
		return result
	}

	timeout := parseTimeout(sc.Timeout, e.config.DefaultTimeout)
	testCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state := NewExecutionState(testCtx)
	if e.config.Teardown != nil {
		defer e.config.Teardown(state)
	}

	if e.config.Setup != nil {
		if err := e.config.Setup(testCtx, sc, state); err != nil {
			result.Error = fmt.Errorf("setup failed: %w", err)
			return result
		}
	}

	for i := range sc.Steps {
		sr := e.executeStep(testCtx, &sc.Steps[i], i, state)
		result.StepResults = append(result.StepResults, sr)
		if !sr.Passed {
			result.Error = sr.Error
			return result
		}
	}

	result.Passed = true
	return result
}

// executeStep executes a single step.
func (e *Engine) executeStep(ctx context.Context, step *loader.Step, index int, state *ExecutionState) *StepResult {
	result := &StepResult{
		Step:          step,
		StepIndex:     index,
		ExpectResults: make(map[string]*ExpectResult),
		Output:        make(map[string]any),
	}
	startTime := time.Now()
	defer func() { result.Duration = time.Since(startTime) }()

	stepCtx, cancel := context.WithTimeout(ctx, parseTimeout(step.Timeout, e.config.StepTimeout))
	defer cancel()

	e.mu.RLock()
	handler, exists := e.handlers[step.Action]
	e.mu.RUnlock()
	if !exists {
		result.Error = fmt.Errorf("unknown action: %s", step.Action)
		return result
	}

	// Handlers see params with earlier outputs substituted.
	resolved := *step
	resolved.Params = InterpolateParams(step.Params, state)

	outputs, err := handler(stepCtx, &resolved, state)
	if err != nil {
		result.Error = err
		return result
	}

	for k, v := range outputs {
		state.Set(k, v)
		result.Output[k] = v
	}
	state.Set(InternalStepOutput, maps.Clone(result.Output))

	result.Passed = true
	for key, expected := range InterpolateParams(step.Expect, state) {
		er := e.checkExpectation(key, expected, state)
		result.ExpectResults[key] = er
		if !er.Passed {
			result.Passed = false
			result.Error = fmt.Errorf("expectation failed: %s - %s", key, er.Message)
		}
	}
	return result
}

func (e *Engine) checkExpectation(key string, expected any, state *ExecutionState) *ExpectResult {
	e.mu.RLock()
	checker, exists := e.checkers[key]
	if !exists {
		checker = e.checkers[CheckerNameDefault]
	}
	e.mu.RUnlock()

	return checker(key, expected, state)
}

// RunSuite executes scenarios in order.
func (e *Engine) RunSuite(ctx context.Context, name string, scenarios []*loader.Scenario) *SuiteResult {
	result := &SuiteResult{SuiteName: name}
	startTime := time.Now()
	defer func() { result.Duration = time.Since(startTime) }()

	for _, sc := range scenarios {
		if ctx.Err() != nil {
			return result
		}

		tr := e.Run(ctx, sc)
		result.Results = append(result.Results, tr)

		switch {
		case tr.Skipped:
			result.SkipCount++
		case tr.Passed:
			result.PassCount++
		default:
			result.FailCount++
		}

		if e.config.OnTestComplete != nil {
			e.config.OnTestComplete(tr)
		}
		if !tr.Passed && !tr.Skipped && e.config.StopOnFirstFailure {
			break
		}
	}
	return result
}

func parseTimeout(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
