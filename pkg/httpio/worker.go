package httpio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
)

// worker owns one accepted connection and serves its requests in order.
type worker struct {
	s      *Server
	conn   net.Conn
	id     string
	ctx    context.Context
	cancel context.CancelFunc
}

func newWorker(s *Server, conn net.Conn) *worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &worker{
		s:      s,
		conn:   conn,
		id:     uuid.New().String(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// stop closes the connection out from under the worker. The blocked read
// fails and the worker exits.
func (w *worker) stop() {
	w.cancel()
	w.conn.Close()
}

func (w *worker) run() {
	defer w.s.removeWorker(w)
	defer w.stop()

	br := bufio.NewReader(w.conn)
	for {
		req, err := http.ReadRequest(br)
		if err != nil {
			w.readFailed(err)
			return
		}
		if !w.serve(req) {
			return
		}
	}
}

func (w *worker) readFailed(err error) {
	if errors.Is(err, io.EOF) || w.ctx.Err() != nil || !w.s.shouldRun.Load() {
		return
	}
	w.s.logger.Debug("control connection read failed", "conn", w.id, "error", err)
}

// serve handles one request and reports whether the connection stays open.
func (w *worker) serve(req *http.Request) bool {
	rc := &RequestContext{ConnID: w.id, Conn: w.conn}
	req = req.WithContext(withRequestContext(w.ctx, rc))
	req.RemoteAddr = w.conn.RemoteAddr().String()

	rb := newResponseBuffer()
	w.dispatch(rb, req)

	// Unread body bytes would be parsed as the next request.
	io.Copy(io.Discard, req.Body)
	req.Body.Close()

	w.s.setResponseHeaders(rb.header)
	closeConn := rc.bail || req.Close
	if err := rb.writeTo(w.conn, req, closeConn); err != nil {
		if w.ctx.Err() == nil {
			w.s.logger.Debug("control connection write failed", "conn", w.id, "error", err)
		}
		return false
	}
	return !closeConn
}

func (w *worker) dispatch(rb *responseBuffer, req *http.Request) {
	defer func() {
		if p := recover(); p != nil {
			w.s.logger.Error("control handler panicked",
				"conn", w.id, "path", req.URL.Path, "panic", p)
			rb.reset()
			WriteString(rb, http.StatusInternalServerError, fmt.Sprintf("%v\n\n%s", p, debug.Stack()))
			Bail(req)
		}
	}()

	h := w.s.registry.lookup(req.URL.Path)
	if h == nil {
		h = http.HandlerFunc(notFound)
	}
	h.ServeHTTP(rb, req)
}
