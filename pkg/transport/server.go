package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbmock/cbmock-go/pkg/log"
	"github.com/google/uuid"
)

// ServerConfig configures a data-plane server.
type ServerConfig struct {
	// Address to listen on (default "127.0.0.1:0").
	Address string

	// TLSConfig enables TLS when set.
	TLSConfig *tls.Config

	// MaxMessageSize bounds a frame payload (default: 1 MB).
	MaxMessageSize uint32

	// Logger receives the protocol trace (optional).
	Logger log.Logger

	// NewHandler creates the handler for a newly accepted connection.
	NewHandler func(conn *ServerConn) FrameHandler

	// OnConnect is called when a connection is established.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called after a connection is closed.
	OnDisconnect func(conn *ServerConn)

	// OnError is called for accept and connection errors.
	OnError func(conn *ServerConn, err error)
}

// Server accepts data-plane connections for one emulated node.
type Server struct {
	config   ServerConfig
	listener net.Listener

	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a server. It does not listen until Start.
func NewServer(config ServerConfig) (*Server, error) {
	if config.NewHandler == nil {
		return nil, fmt.Errorf("NewHandler is required")
	}
	if config.Address == "" {
		config.Address = "127.0.0.1:0"
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	return &Server{
		config: config,
		conns:  make(map[*ServerConn]struct{}),
	}, nil
}

// Start binds the listener and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	if s.config.TLSConfig != nil {
		listener = tls.NewListener(listener, s.config.TLSConfig)
	}
	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and every connection, then waits for the
// connection goroutines to exit.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	s.cancel()
	s.listener.Close()

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return nil
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// Port returns the bound TCP port, or 0 before Start.
func (s *Server) Port() int {
	addr := s.Addr()
	if addr == nil {
		return 0
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(port)
	return n
}

// ConnectionCount returns the number of live connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// Accept failures back off between these bounds, doubling each time.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	var delay time.Duration
	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.reportError(nil, fmt.Errorf("accept error: %w", err))
			delay = nextAcceptDelay(delay)
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		delay = 0

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func nextAcceptDelay(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptDelay
	}
	return min(2*d, maxAcceptDelay)
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	connID := uuid.New().String()
	framer := NewFramer(conn, s.config.MaxMessageSize)
	if s.config.Logger != nil {
		framer.SetLogger(s.config.Logger, connID)
	}

	sconn := &ServerConn{
		conn:       conn,
		framer:     framer,
		server:     s,
		closeCh:    make(chan struct{}),
		remoteAddr: conn.RemoteAddr(),
		connID:     connID,
	}

	s.connsMu.Lock()
	if !s.running.Load() {
		s.connsMu.Unlock()
		conn.Close()
		return
	}
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	sconn.logState("", "CONNECTED")
	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	sconn.readLoop(s.config.NewHandler(sconn))
	sconn.Close()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	sconn.logState("CONNECTED", "DISCONNECTED")
	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

func (s *Server) reportError(conn *ServerConn, err error) {
	if s.config.OnError != nil {
		s.config.OnError(conn, err)
	}
}

// ServerConn is one accepted data-plane connection.
type ServerConn struct {
	conn       net.Conn
	framer     *Framer
	server     *Server
	closeCh    chan struct{}
	closeOnce  sync.Once
	remoteAddr net.Addr
	connID     string
}

// RemoteAddr returns the peer address.
func (c *ServerConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// LocalAddr returns the local address the peer connected to.
func (c *ServerConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// Send writes one frame to the peer.
func (c *ServerConn) Send(data []byte) error {
	return c.framer.WriteFrame(data)
}

// Close closes the connection. It is safe to call more than once.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

func (c *ServerConn) closing() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func (c *ServerConn) readLoop(handler FrameHandler) {
	for {
		if c.closing() || c.server.ctx.Err() != nil {
			return
		}

		frame, err := c.framer.ReadFrame()
		if err != nil {
			if err != io.EOF && !c.closing() && c.server.running.Load() {
				c.server.reportError(c, err)
			}
			return
		}

		resp, err := handler.HandleFrame(c.server.ctx, frame)
		if err != nil {
			c.logError(err)
			c.server.reportError(c, err)
			return
		}
		if resp == nil {
			continue
		}
		if err := c.Send(resp); err != nil {
			if !c.closing() {
				c.server.reportError(c, err)
			}
			return
		}
	}
}

func (c *ServerConn) logState(oldState, newState string) {
	if c.server.config.Logger == nil {
		return
	}
	c.server.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   c.remoteAddr.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
		},
	})
}

func (c *ServerConn) logError(err error) {
	if c.server.config.Logger == nil {
		return
	}
	c.server.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		RemoteAddr:   c.remoteAddr.String(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
		},
	})
}
