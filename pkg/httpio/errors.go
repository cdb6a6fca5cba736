package httpio

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBound is returned by Start before Bind.
	ErrNotBound = errors.New("httpio: server not bound")

	// ErrRunning is returned by Start on a running server.
	ErrRunning = errors.New("httpio: server already running")
)

// BindError reports a listening endpoint that could not be acquired.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("httpio: bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}
