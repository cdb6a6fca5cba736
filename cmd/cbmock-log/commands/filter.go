package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/cbmock/cbmock-go/pkg/log"
)

// FilterOptions holds the raw flag values of the filter and view commands.
type FilterOptions struct {
	ConnID    string
	Bucket    string
	Node      int
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

// Build converts the options to a log.Filter. A negative Node matches
// every node.
func (o FilterOptions) Build() (log.Filter, error) {
	f := log.Filter{ConnectionID: o.ConnID, Bucket: o.Bucket}

	if o.Node >= 0 {
		n := o.Node
		f.NodeIndex = &n
	}
	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return f, fmt.Errorf("invalid time-start format: %w", err)
		}
		f.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return f, fmt.Errorf("invalid time-end format: %w", err)
		}
		f.TimeEnd = &t
	}
	if o.Layer != "" {
		l, err := ParseLayerFlag(o.Layer)
		if err != nil {
			return f, err
		}
		f.Layer = &l
	}
	if o.Direction != "" {
		d, err := ParseDirectionFlag(o.Direction)
		if err != nil {
			return f, err
		}
		f.Direction = &d
	}
	if o.Category != "" {
		c, err := ParseCategoryFlag(o.Category)
		if err != nil {
			return f, err
		}
		f.Category = &c
	}
	return f, nil
}

// RunFilter copies the events of path matching filter into a new log file
// at output and reports the count on w.
func RunFilter(path, output string, filter log.Filter, w io.Writer) error {
	logger, err := log.NewFileLogger(output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	err = each(path, filter, func(e log.Event) error {
		logger.Log(e)
		count++
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Filtered %d events to %s\n", count, output)
	return nil
}
