package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cbmock/cbmock-go/pkg/log"
	"github.com/cbmock/cbmock-go/pkg/metrics"
)

// ErrCommandNotFound is returned by Dispatch for unregistered names.
var ErrCommandNotFound = errors.New("command not found")

// Command executes one control command.
type Command interface {
	Execute(ctx context.Context, payload Payload) *CommandStatus
}

// CommandFunc adapts a function to Command.
type CommandFunc func(ctx context.Context, payload Payload) *CommandStatus

// Execute calls f.
func (f CommandFunc) Execute(ctx context.Context, payload Payload) *CommandStatus {
	return f(ctx, payload)
}

type entry struct {
	cmd  Command
	help string
}

// Dispatcher maps command names to commands. Names are case-insensitive.
type Dispatcher struct {
	mu       sync.RWMutex
	commands map[string]entry

	logger   *slog.Logger
	protoLog log.Logger
	metrics  *metrics.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithProtocolLogger records every dispatched command in the event trace.
func WithProtocolLogger(l log.Logger) Option {
	return func(d *Dispatcher) { d.protoLog = l }
}

// WithMetrics counts dispatched commands in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{commands: make(map[string]entry)}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d.protoLog = log.OrNoop(d.protoLog)
	return d
}

// Register adds or replaces a command. help is a one-paragraph description
// shown in the help text.
func (d *Dispatcher) Register(name, help string, cmd Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[strings.ToUpper(name)] = entry{cmd: cmd, help: help}
}

// Commands returns the registered names in sorted order.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Dispatch runs the named command.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, payload Payload) (*CommandStatus, error) {
	key := strings.ToUpper(name)
	d.mu.RLock()
	e, ok := d.commands[key]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}

	start := time.Now()
	status := e.cmd.Execute(ctx, payload)
	if status == nil {
		status = OK()
	}
	elapsed := time.Since(start)

	d.metrics.ControlCommand(key, status.Status)
	d.protoLog.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerControl,
		Category:  log.CategoryMessage,
		Command: &log.CommandEvent{
			Name:           key,
			Status:         status.Status,
			ProcessingTime: &elapsed,
		},
	})
	if status.Succeeded() {
		d.logger.Debug("control command", "command", key)
	} else {
		d.logger.Info("control command failed", "command", key, "reason", status.Error)
	}
	return status, nil
}

// Help returns the indented help text listing every command.
func (d *Dispatcher) Help() string {
	var b strings.Builder
	b.WriteString("Usage: /mock/<COMMAND>[?key=value&...]\n")
	b.WriteString("The payload may also be sent as a form or JSON (application/json) body.\n\n")
	b.WriteString("Commands:\n")

	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(&b, "    %s\n", name)
		for _, line := range strings.Split(strings.TrimSpace(d.commands[name].help), "\n") {
			fmt.Fprintf(&b, "        %s\n", strings.TrimSpace(line))
		}
	}
	return b.String()
}
