package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cbmock/cbmock-go/pkg/log"
)

// RunExport converts path to format ("jsonl" or "csv") and writes it to
// output, or to w when output is empty.
func RunExport(path, format, output string, w io.Writer) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "jsonl" {
		return exportJSONL(path, w)
	}
	return exportCSV(path, w)
}

func exportJSONL(path string, w io.Writer) error {
	enc := json.NewEncoder(w)
	return each(path, log.Filter{}, func(e log.Event) error {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

var csvHeader = []string{"timestamp", "connection_id", "direction", "layer", "category", "bucket", "node", "type", "status"}

func exportCSV(path string, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return each(path, log.Filter{}, func(e log.Event) error {
		node := ""
		if e.NodeIndex != nil {
			node = strconv.Itoa(*e.NodeIndex)
		}
		status := ""
		switch {
		case e.Command != nil:
			status = e.Command.Status
		case e.StateChange != nil:
			status = e.StateChange.NewState
		case e.Fault != nil:
			status = e.Fault.Action.String()
		}
		row := []string{
			e.Timestamp.UTC().Format(timeFormat),
			e.ConnectionID,
			e.Direction.String(),
			e.Layer.String(),
			e.Category.String(),
			e.Bucket,
			node,
			typeLabel(e),
			status,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	})
}
