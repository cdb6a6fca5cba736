// Package interactive provides the terminal console for cbmock.
package interactive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/cbmock/cbmock-go/pkg/control"
	"github.com/chzyer/readline"
)

// Dispatcher runs control commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, payload control.Payload) (*control.CommandStatus, error)
	Help() string
}

// Console reads control commands from the terminal.
//
// A line is a command name followed by either a JSON object or
// key=value pairs:
//
//	opfail code=134 count=2 servers=[0]
//	opfail {"code": 134, "count": -1}
type Console struct {
	rl  *readline.Instance
	out io.Writer
}

// New creates a console on the process terminal.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "cbmock> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, out: rl.Stdout()}, nil
}

// Stdout returns a writer that coordinates with the prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that coordinates with the prompt. Use it for log
// output.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run reads lines until EOF, quit or ctx is done. cancel is called when
// the user leaves the console.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc, d Dispatcher) {
	defer c.rl.Close()

	c.printHelp(d)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if !c.Execute(ctx, d, line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one input line. It returns false when the user asked to
// quit.
func (c *Console) Execute(ctx context.Context, d Dispatcher, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	name, rest, _ := strings.Cut(input, " ")
	switch strings.ToLower(name) {
	case "help", "?":
		c.printHelp(d)
		return true
	case "quit", "exit", "q":
		return false
	}

	payload, err := ParseArgs(rest)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return true
	}

	status, err := d.Dispatch(ctx, name, payload)
	if errors.Is(err, control.ErrCommandNotFound) {
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", name)
		return true
	}
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return true
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return true
	}
	fmt.Fprintln(c.out, string(out))
	return true
}

// ParseArgs converts the argument part of a console line into a payload.
func ParseArgs(args string) (control.Payload, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return control.Payload{}, nil
	}

	if strings.HasPrefix(args, "{") {
		var p control.Payload
		if err := json.Unmarshal([]byte(args), &p); err != nil {
			return nil, fmt.Errorf("invalid JSON arguments: %w", err)
		}
		return p, nil
	}

	values := url.Values{}
	for _, field := range strings.Fields(args) {
		k, v, ok := strings.Cut(field, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", field)
		}
		values.Add(k, v)
	}
	return control.PayloadFromValues(values), nil
}

func (c *Console) printHelp(d Dispatcher) {
	fmt.Fprint(c.out, `
Console:
  help               - Show this help
  quit               - Stop the emulator

  <COMMAND> key=value ...
  <COMMAND> {json}   - Run a control command

`)
	fmt.Fprint(c.out, d.Help())
}
