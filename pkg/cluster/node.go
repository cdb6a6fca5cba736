package cluster

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbmock/cbmock-go/pkg/log"
	"github.com/cbmock/cbmock-go/pkg/protocol"
	"github.com/cbmock/cbmock-go/pkg/transport"
)

const metricsServerLabel = "node"

// Node is one emulated cluster member.
type Node struct {
	index   int
	addr    string
	bucket  *Bucket
	cluster *Cluster

	mu     sync.Mutex
	server *transport.Server

	failure atomic.Pointer[FailureContext]
}

func newNode(c *Cluster, b *Bucket, index int, addr string) *Node {
	return &Node{index: index, addr: addr, bucket: b, cluster: c}
}

// String identifies the node in logs.
func (n *Node) String() string {
	return fmt.Sprintf("%s[%d]", n.bucket.name, n.index)
}

// Index returns the node's position within its bucket.
func (n *Node) Index() int { return n.index }

// Bucket returns the owning bucket.
func (n *Node) Bucket() *Bucket { return n.bucket }

// Host returns the host the node listens on.
func (n *Node) Host() string { return n.cluster.config.Host }

// Port returns the bound data-plane port, or 0 when not running.
func (n *Node) Port() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.server == nil {
		return 0
	}
	return n.server.Port()
}

// ConnectionCount returns the number of live data-plane connections.
func (n *Node) ConnectionCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.server == nil {
		return 0
	}
	return n.server.ConnectionCount()
}

// Failure returns the installed failure context, or nil.
func (n *Node) Failure() *FailureContext {
	return n.failure.Load()
}

// SetFailure replaces the failure context. A nil fc clears it.
func (n *Node) SetFailure(fc *FailureContext) {
	n.failure.Store(fc)
	n.cluster.metrics.FaultInstalled(n.bucket.name)

	ev := n.faultEvent(log.FaultInstalled, fc)
	n.cluster.protoLog.Log(ev)
	n.cluster.logger.Debug("failure context installed",
		"node", n.String(), "active", fc.Active())
}

// TakeFailure consumes one failure for op. It reports the injected code when
// the node must fail the operation.
func (n *Node) TakeFailure(op protocol.Opcode) (protocol.ErrorCode, bool) {
	for {
		cur := n.failure.Load()
		if !cur.Matches(op) {
			return 0, false
		}
		next := cur.consumed()
		if !n.failure.CompareAndSwap(cur, next) {
			continue
		}

		n.cluster.metrics.FaultTriggered(n.bucket.name, cur.Code.String())
		n.cluster.protoLog.Log(n.faultEvent(log.FaultTriggered, next))
		return cur.Code, true
	}
}

func (n *Node) faultEvent(action log.FaultAction, fc *FailureContext) log.Event {
	idx := n.index
	fe := &log.FaultEvent{Action: action}
	if fc != nil {
		fe.Code = uint16(fc.Code)
		fe.Remaining = fc.Remaining
		if fc.Operation != nil {
			op := uint8(*fc.Operation)
			fe.Operation = &op
		}
	}
	return log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerData,
		Category:  log.CategoryFault,
		Bucket:    n.bucket.name,
		NodeIndex: &idx,
		Fault:     fe,
	}
}

func (n *Node) start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.server != nil {
		return fmt.Errorf("node already running")
	}

	c := n.cluster
	srv, err := transport.NewServer(transport.ServerConfig{
		Address:   n.addr,
		TLSConfig: c.tlsConf,
		Logger:    c.protoLog,
		NewHandler: func(conn *transport.ServerConn) transport.FrameHandler {
			return newConnHandler(n, conn)
		},
		OnConnect: func(conn *transport.ServerConn) {
			c.metrics.ConnectionOpened(metricsServerLabel)
			c.logger.Debug("data connection opened", "node", n.String(),
				"conn", conn.ConnID(), "remote", conn.RemoteAddr())
		},
		OnDisconnect: func(conn *transport.ServerConn) {
			c.metrics.ConnectionClosed(metricsServerLabel)
			c.logger.Debug("data connection closed", "node", n.String(), "conn", conn.ConnID())
		},
		OnError: func(conn *transport.ServerConn, err error) {
			attrs := []any{"node", n.String(), "error", err}
			if conn != nil {
				attrs = append(attrs, "conn", conn.ConnID())
			}
			c.logger.Warn("data connection error", attrs...)
		},
	})
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	n.server = srv
	c.logger.Debug("node listening", "node", n.String(), "addr", srv.Addr())
	return nil
}

func (n *Node) stop() {
	n.mu.Lock()
	srv := n.server
	n.server = nil
	n.mu.Unlock()
	if srv != nil {
		srv.Stop()
	}
}
