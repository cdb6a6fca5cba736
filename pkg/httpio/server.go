package httpio

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbmock/cbmock-go/pkg/metrics"
	"github.com/cbmock/cbmock-go/pkg/version"
)

const metricsServerLabel = "control"

// Server is a thread-per-connection HTTP/1.x server with a mutable path
// registry.
type Server struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	listenMu sync.Mutex
	listener net.Listener

	registry *registry

	shouldRun atomic.Bool
	acceptWG  sync.WaitGroup

	// workersMu guards workers; workersCond is signalled whenever a worker
	// leaves the set.
	workersMu   sync.Mutex
	workersCond *sync.Cond
	workers     map[*worker]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records connection counts in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates an unbound server.
func New(opts ...Option) *Server {
	s := &Server{
		registry: newRegistry(),
		workers:  make(map[*worker]struct{}),
	}
	s.workersCond = sync.NewCond(&s.workersMu)
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.registry.register("*", http.HandlerFunc(notFound))
	return s
}

// Bind listens on address, closing any listener bound before.
func (s *Server) Bind(address string) error {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return &BindError{Addr: address, Err: err}
	}
	s.BindListener(l)
	return nil
}

// BindListener serves l, closing any listener bound before.
func (s *Server) BindListener(l net.Listener) {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.listener = l
	if s.shouldRun.Load() {
		s.startAccept(l)
	}
}

// Addr returns the bound address, or nil.
func (s *Server) Addr() net.Addr {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound TCP port, or 0.
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

// Register routes pattern to h. It may be called while serving.
func (s *Server) Register(pattern string, h http.Handler) {
	s.registry.register(pattern, h)
}

// RegisterFunc routes pattern to f.
func (s *Server) RegisterFunc(pattern string, f func(http.ResponseWriter, *http.Request)) {
	s.registry.register(pattern, http.HandlerFunc(f))
}

// Unregister removes the route for pattern.
func (s *Server) Unregister(pattern string) {
	s.registry.unregister(pattern)
}

// Start launches the accept loop and returns immediately.
func (s *Server) Start() error {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()

	if s.listener == nil {
		return ErrNotBound
	}
	if !s.shouldRun.CompareAndSwap(false, true) {
		return ErrRunning
	}
	s.startAccept(s.listener)
	s.logger.Info("control server started", "addr", s.listener.Addr())
	return nil
}

// Stop closes the listener and every live connection, and blocks until all
// workers have exited. The server must be bound again before the next Start.
func (s *Server) Stop() {
	running := s.shouldRun.Swap(false)

	s.listenMu.Lock()
	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
	s.listenMu.Unlock()
	if !running {
		return
	}
	s.acceptWG.Wait()

	s.workersMu.Lock()
	for w := range s.workers {
		w.stop()
	}
	for len(s.workers) > 0 {
		s.workersCond.Wait()
	}
	s.workersMu.Unlock()

	s.logger.Info("control server stopped")
}

// WorkerCount returns the number of live workers.
func (s *Server) WorkerCount() int {
	s.workersMu.Lock()
	defer s.workersMu.Unlock()
	return len(s.workers)
}

func (s *Server) startAccept(l net.Listener) {
	s.acceptWG.Add(1)
	go s.acceptLoop(l)
}

func (s *Server) acceptLoop(l net.Listener) {
	defer s.acceptWG.Done()

	for {
		conn, err := l.Accept()
		if err != nil {
			if !s.shouldRun.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		w := newWorker(s, conn)
		s.workersMu.Lock()
		if !s.shouldRun.Load() {
			s.workersMu.Unlock()
			conn.Close()
			return
		}
		s.workers[w] = struct{}{}
		s.metrics.ConnectionOpened(metricsServerLabel)
		s.workersMu.Unlock()

		go w.run()
	}
}

func (s *Server) removeWorker(w *worker) {
	s.workersMu.Lock()
	delete(s.workers, w)
	s.workersCond.Broadcast()
	s.workersMu.Unlock()
	s.metrics.ConnectionClosed(metricsServerLabel)
}

func (s *Server) setResponseHeaders(h http.Header) {
	h.Set("Cache-Control", "must-revalidate")
	h.Set("Server", version.ServerString())
}
