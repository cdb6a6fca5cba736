package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/cbmock/cbmock-go/pkg/log"
)

type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingLogger) Log(e log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingLogger) Events() []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]log.Event(nil), r.events...)
}

func TestFrameWriterReader(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"small", []byte("hello")},
		{"single byte", []byte{0x42}},
		{"binary", []byte{0x00, 0xFF, 0x7F, 0x80}},
		{"max size", bytes.Repeat([]byte("y"), 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			if err := NewFrameWriter(buf, 1024).WriteFrame(tt.payload); err != nil {
				t.Fatalf("WriteFrame failed: %v", err)
			}
			if buf.Len() != FrameSize(len(tt.payload)) {
				t.Errorf("frame size = %d, want %d", buf.Len(), FrameSize(len(tt.payload)))
			}

			got, err := NewFrameReader(buf, 1024).ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("payload mismatch: got %d bytes, want %d", len(got), len(tt.payload))
			}
		})
	}
}

func TestFrameWriterRejects(t *testing.T) {
	w := NewFrameWriter(io.Discard, 4)
	if err := w.WriteFrame(nil); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("empty: got %v", err)
	}
	if err := w.WriteFrame([]byte("12345")); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("too large: got %v", err)
	}
}

func TestFrameReaderErrors(t *testing.T) {
	prefix := func(n uint32) []byte {
		b := make([]byte, LengthPrefixSize)
		binary.BigEndian.PutUint32(b, n)
		return b
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"eof", nil, io.EOF},
		{"truncated prefix", []byte{0, 0}, ErrFrameTruncated},
		{"zero length", prefix(0), ErrMessageEmpty},
		{"too large", prefix(DefaultMaxMessageSize + 1), ErrMessageTooLarge},
		{"truncated payload", append(prefix(10), 'a', 'b'), ErrFrameTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrameReader(bytes.NewReader(tt.data), 0).ReadFrame()
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMultipleFrames(t *testing.T) {
	buf := new(bytes.Buffer)
	f := NewFramer(buf, 0)
	msgs := []string{"one", "two", "three"}
	for _, m := range msgs {
		if err := f.WriteFrame([]byte(m)); err != nil {
			t.Fatal(err)
		}
	}
	for _, m := range msgs {
		got, err := f.ReadFrame()
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != m {
			t.Errorf("got %q, want %q", got, m)
		}
	}
}

func TestFramerLogsBothDirections(t *testing.T) {
	buf := new(bytes.Buffer)
	rec := &recordingLogger{}
	f := NewFramer(buf, 0)
	f.SetLogger(rec, "conn-1")

	if err := f.WriteFrame([]byte("ping")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ReadFrame(); err != nil {
		t.Fatal(err)
	}

	events := rec.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Direction != log.DirectionOut || events[1].Direction != log.DirectionIn {
		t.Errorf("directions = %v, %v", events[0].Direction, events[1].Direction)
	}
	for _, e := range events {
		if e.ConnectionID != "conn-1" {
			t.Errorf("connection id = %q", e.ConnectionID)
		}
		if e.Frame == nil || e.Frame.Size != FrameSize(4) {
			t.Errorf("frame = %+v", e.Frame)
		}
	}
}

func TestFramerLogsTruncatedData(t *testing.T) {
	rec := &recordingLogger{}
	w := NewFrameWriter(io.Discard, 0)
	w.SetLogger(rec, "c")

	if err := w.WriteFrame(bytes.Repeat([]byte("z"), MaxLogFrameDataSize+10)); err != nil {
		t.Fatal(err)
	}
	e := rec.Events()[0]
	if !e.Frame.Truncated || len(e.Frame.Data) != MaxLogFrameDataSize {
		t.Errorf("truncated=%v len=%d", e.Frame.Truncated, len(e.Frame.Data))
	}
}
