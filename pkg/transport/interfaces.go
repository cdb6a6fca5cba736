package transport

import (
	"context"
	"net"
	"time"
)

// FrameHandler processes one request frame and returns the response frame.
// A nil response sends nothing. A non-nil error closes the connection.
type FrameHandler interface {
	HandleFrame(ctx context.Context, frame []byte) ([]byte, error)
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(ctx context.Context, frame []byte) ([]byte, error)

// HandleFrame calls f.
func (f FrameHandlerFunc) HandleFrame(ctx context.Context, frame []byte) ([]byte, error) {
	return f(ctx, frame)
}

// FrameReadWriter provides length-prefixed frame I/O.
type FrameReadWriter interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
}

// ClientConnection is the client side of a data-plane connection.
type ClientConnection interface {
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	Send(data []byte) error
	Receive(timeout time.Duration) ([]byte, error)
	Close() error
}

var (
	_ FrameReadWriter  = (*Framer)(nil)
	_ FrameHandler     = FrameHandlerFunc(nil)
	_ ClientConnection = (*ClientConn)(nil)
)
