package log

// Logger is the interface applications implement to receive protocol events.
type Logger interface {
	// Log records an event. Implementations must be thread-safe and should
	// not block; the caller is a connection worker.
	Log(event Event)
}

// NoopLogger discards all events. It is usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// OrNoop returns l, or NoopLogger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}

var _ Logger = NoopLogger{}
