// Package commands implements the cbmock-log subcommands.
package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cbmock/cbmock-go/pkg/log"
	"github.com/cbmock/cbmock-go/pkg/protocol"
)

const timeFormat = "2006-01-02T15:04:05.000000Z"

// typeLabel names the payload an event carries.
func typeLabel(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Command != nil:
		return event.Command.Name
	case event.StateChange != nil:
		return "State"
	case event.Fault != nil:
		return "Fault"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// formatEvent writes a human-readable representation of event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format(timeFormat)
	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s", ts, shortenConnID(event.ConnectionID),
		event.Direction.String(), event.Layer.String(), typeLabel(event))
	if event.Bucket != "" {
		fmt.Fprintf(w, " (%s", event.Bucket)
		if event.NodeIndex != nil {
			fmt.Fprintf(w, "/%d", *event.NodeIndex)
		}
		fmt.Fprint(w, ")")
	}
	fmt.Fprintln(w)

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Command != nil:
		formatCommandDetails(w, event.Command)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Fault != nil:
		formatFaultDetails(w, event.Fault)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatCommandDetails(w io.Writer, cmd *log.CommandEvent) {
	if cmd.Opaque != 0 {
		fmt.Fprintf(w, "  Opaque: %d\n", cmd.Opaque)
	}
	if cmd.Status != "" {
		fmt.Fprintf(w, "  Status: %s", cmd.Status)
		if cmd.Injected {
			fmt.Fprint(w, " (injected)")
		}
		fmt.Fprintln(w)
	}
	if cmd.ProcessingTime != nil {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(*cmd.ProcessingTime))
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatFaultDetails(w io.Writer, f *log.FaultEvent) {
	fmt.Fprintf(w, "  Action: %s\n", f.Action.String())
	fmt.Fprintf(w, "  Code: %s (0x%02x)\n", protocol.ErrorCode(f.Code), f.Code)
	if f.Remaining < 0 {
		fmt.Fprintln(w, "  Remaining: unlimited")
	} else {
		fmt.Fprintf(w, "  Remaining: %d\n", f.Remaining)
	}
	if f.Operation != nil {
		fmt.Fprintf(w, "  Operation: %s\n", protocol.Opcode(*f.Operation))
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer name, case-insensitively.
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "data":
		return log.LayerData, nil
	case "auth":
		return log.LayerAuth, nil
	case "control":
		return log.LayerControl, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, data, auth, or control)", s)
	}
}

// ParseDirectionFlag parses a direction name, case-insensitively.
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category name, case-insensitively.
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "state":
		return log.CategoryState, nil
	case "fault":
		return log.CategoryFault, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, state, fault, or error)", s)
	}
}

// each calls fn for every event of path matching filter.
func each(path string, filter log.Filter, fn func(log.Event) error) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// RunView prints the events of path matching filter.
func RunView(path string, filter log.Filter, output io.Writer) error {
	return each(path, filter, func(e log.Event) error {
		formatEvent(output, e)
		return nil
	})
}
