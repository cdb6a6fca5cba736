package log

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	dec := NewDecoder(f)
	var events []Event
	for {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return events
			}
			t.Fatalf("decode: %v", err)
		}
		events = append(events, ev)
	}
}

func TestFileLoggerWritesCBOR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.mlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	logger.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Layer:        LayerData,
		Category:     CategoryMessage,
		Command:      &CommandEvent{Name: "NOOP", Opaque: 7, Status: "ETMPFAIL", Injected: true},
	})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events := readEvents(t, path)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	cmd := events[0].Command
	if cmd == nil || cmd.Name != "NOOP" || cmd.Opaque != 7 || !cmd.Injected {
		t.Errorf("decoded command = %+v", cmd)
	}
}

func TestFileLoggerConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.mlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				logger.Log(Event{Timestamp: time.Now(), Layer: LayerTransport, Frame: &FrameEvent{Size: j}})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	if got := len(readEvents(t, path)); got != 100 {
		t.Errorf("got %d events, want 100", got)
	}
}

func TestFileLoggerIgnoresLogAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.mlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Close()
	logger.Log(Event{Layer: LayerData})

	if err := logger.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
	if got := len(readEvents(t, path)); got != 0 {
		t.Errorf("got %d events after close, want 0", got)
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	idx := 1
	want := Event{
		Timestamp:    time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC),
		ConnectionID: "c",
		Layer:        LayerAuth,
		Category:     CategoryState,
		Bucket:       "default",
		NodeIndex:    &idx,
		StateChange:  &StateChangeEvent{Entity: StateEntityAuth, NewState: "AUTHENTICATED"},
	}

	data, err := EncodeEvent(want)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, want.Timestamp)
	}
	if got.NodeIndex == nil || *got.NodeIndex != 1 || got.StateChange.NewState != "AUTHENTICATED" {
		t.Errorf("decoded event = %+v", got)
	}
}
