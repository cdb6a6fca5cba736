// Package runner runs YAML scenarios against a running emulator.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/cbmock/cbmock-go/internal/testharness/client"
	"github.com/cbmock/cbmock-go/internal/testharness/engine"
	"github.com/cbmock/cbmock-go/internal/testharness/loader"
	"github.com/cbmock/cbmock-go/internal/testharness/reporter"
)

// Config configures a Runner.
type Config struct {
	// Target is the control endpoint, e.g. "http://127.0.0.1:18091/mock".
	Target string

	// TestDir holds the scenario files; it is searched recursively.
	TestDir string

	// Pattern filters scenarios by ID prefix.
	Pattern string

	// Tags keeps only scenarios carrying all of these tags.
	Tags []string

	// Timeout is the default scenario timeout.
	Timeout time.Duration

	// StopOnFirstFailure ends the run after the first failed scenario.
	StopOnFirstFailure bool

	Verbose bool

	// Output is where results are written.
	Output io.Writer

	// OutputFormat is "text", "json", or "junit".
	OutputFormat string

	// AdminUser and AdminPassword authenticate against the control endpoint.
	AdminUser     string
	AdminPassword string

	// Variables are available to every scenario as {{ name }}.
	Variables map[string]any

	Logger *slog.Logger
}

// Runner executes scenarios against an emulator.
type Runner struct {
	config   *Config
	host     string
	control  *client.ControlClient
	engine   *engine.Engine
	reporter reporter.Reporter
	logger   *slog.Logger
}

// New creates a runner for config.
func New(config *Config) (*Runner, error) {
	u, err := url.Parse(config.Target)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid target %q: must be a control URL", config.Target)
	}

	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	rep, err := reporter.New(config.OutputFormat, out, config.Verbose)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var opts []client.ControlOption
	if config.AdminUser != "" {
		opts = append(opts, client.WithBasicAuth(config.AdminUser, config.AdminPassword))
	}

	r := &Runner{
		config:   config,
		host:     u.Hostname(),
		control:  client.NewControlClient(config.Target, opts...),
		reporter: rep,
		logger:   logger,
	}

	ec := engine.DefaultConfig()
	if config.Timeout > 0 {
		ec.DefaultTimeout = config.Timeout
	}
	ec.StopOnFirstFailure = config.StopOnFirstFailure
	ec.Setup = r.setup
	ec.Teardown = r.teardown
	r.engine = engine.NewWithConfig(ec)
	r.registerHandlers()

	return r, nil
}

// Engine returns the engine, for registering extra handlers.
func (r *Runner) Engine() *engine.Engine {
	return r.engine
}

// Run loads, filters and executes the scenarios in TestDir and reports
// the results.
func (r *Runner) Run(ctx context.Context) (*engine.SuiteResult, error) {
	scenarios, err := loader.LoadDirectoryRecursive(r.config.TestDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenarios: %w", err)
	}
	scenarios = loader.Filter(scenarios, r.config.Pattern, r.config.Tags)
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios found matching filters (pattern=%q, tags=%v)",
			r.config.Pattern, r.config.Tags)
	}

	info, err := r.control.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("target not reachable: %w", err)
	}
	r.logger.Info("running scenarios",
		slog.String("target", r.config.Target),
		slog.String("server", info.Server),
		slog.Int("scenarios", len(scenarios)))

	result := r.engine.RunSuite(ctx, info.Server, scenarios)
	r.reporter.ReportSuite(result)
	return result, nil
}

// setup starts every scenario from a cluster without injected failures
// and with all mechanisms enabled.
func (r *Runner) setup(ctx context.Context, _ *loader.Scenario, state *engine.ExecutionState) error {
	state.Custom[keyConns] = make(map[string]*conn)
	for k, v := range r.config.Variables {
		state.Set(k, v)
	}
	if err := r.control.ClearFailures(ctx); err != nil {
		return err
	}
	return r.resetMechanisms(ctx)
}

func (r *Runner) resetMechanisms(ctx context.Context) error {
	info, err := r.control.Info(ctx)
	if err != nil {
		return err
	}
	for _, b := range info.Buckets {
		if err := r.control.SetMechanisms(ctx, b.Name, allMechanisms()...); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) teardown(state *engine.ExecutionState) {
	for name, c := range conns(state) {
		if err := c.data.Close(); err != nil {
			r.logger.Debug("close connection", slog.String("conn", name), slog.Any("error", err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.control.ClearFailures(ctx); err != nil {
		r.logger.Warn("clear failures after scenario", slog.Any("error", err))
	}
}
