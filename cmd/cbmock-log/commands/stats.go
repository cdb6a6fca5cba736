package commands

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"time"

	"github.com/cbmock/cbmock-go/pkg/log"
)

// Stats aggregates a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Commands          map[string]int
	StatusCodes       map[string]int
	Connections       map[string]*ConnectionStats
	FaultsTriggered   int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats aggregates one connection.
type ConnectionStats struct {
	FirstSeen     time.Time
	LastSeen      time.Time
	Events        int
	Bucket        string
	Node          *int
	Authenticated string
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Commands:          make(map[string]int),
		StatusCodes:       make(map[string]int),
		Connections:       make(map[string]*ConnectionStats),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	switch {
	case event.Command != nil:
		s.Commands[event.Command.Name]++
		if event.Command.Status != "" {
			s.StatusCodes[event.Command.Status]++
		}
	case event.Fault != nil:
		if event.Fault.Action == log.FaultTriggered {
			s.FaultsTriggered++
		}
	case event.Error != nil:
		s.Errors++
	}

	if event.ConnectionID == "" {
		return
	}
	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if conn.Bucket == "" {
		conn.Bucket = event.Bucket
		conn.Node = event.NodeIndex
	}
	if sc := event.StateChange; sc != nil && sc.Entity == log.StateEntityAuth {
		conn.Authenticated = sc.NewState
	}
}

// RunStats prints statistics about path.
func RunStats(path string, w io.Writer) error {
	stats := newStats()
	if err := each(path, log.Filter{}, func(e log.Event) error {
		stats.add(e)
		return nil
	}); err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintln(w, title)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-20s %d\n", k+":", counts[k])
	}
	fmt.Fprintln(w)
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== cbmock Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, l := range []log.Layer{log.LayerTransport, log.LayerData, log.LayerAuth, log.LayerControl} {
		if n := stats.EventsByLayer[l]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", l.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, c := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryFault, log.CategoryError} {
		if n := stats.EventsByCategory[c]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", c.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	printCounts(w, "Commands:", stats.Commands)
	printCounts(w, "Status Codes:", stats.StatusCodes)

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(c.id), c.stats.Events, duration)
			if c.stats.Bucket != "" {
				if c.stats.Node != nil {
					fmt.Fprintf(w, "           Node: %s/%d\n", c.stats.Bucket, *c.stats.Node)
				} else {
					fmt.Fprintf(w, "           Bucket: %s\n", c.stats.Bucket)
				}
			}
			if c.stats.Authenticated != "" {
				fmt.Fprintf(w, "           Auth: %s\n", c.stats.Authenticated)
			}
		}
	}

	if stats.FaultsTriggered > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Injected Failures: %d\n", stats.FaultsTriggered)
	}
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
