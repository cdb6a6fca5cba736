package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cbmock/cbmock-go/pkg/log"
	"github.com/cbmock/cbmock-go/pkg/protocol"
	"github.com/cbmock/cbmock-go/pkg/sasl"
	"github.com/cbmock/cbmock-go/pkg/transport"
	"github.com/cbmock/cbmock-go/pkg/version"
)

// ErrProtocol is returned for a request that ends its connection.
var ErrProtocol = errors.New("protocol error")

// connHandler serves one data-plane connection. The transport calls it from
// a single goroutine, so the session needs no locking.
type connHandler struct {
	node    *Node
	conn    *transport.ServerConn
	session *sasl.Session
}

func newConnHandler(n *Node, conn *transport.ServerConn) *connHandler {
	return &connHandler{node: n, conn: conn, session: sasl.NewSession()}
}

// HandleFrame implements transport.FrameHandler.
func (h *connHandler) HandleFrame(ctx context.Context, frame []byte) ([]byte, error) {
	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	start := time.Now()
	var resp *protocol.Response
	code, injected := h.node.TakeFailure(req.Opcode)
	if injected {
		resp = protocol.NewResponse(req, code, nil)
	} else if resp, err = h.execute(ctx, req); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProtocol, req.Opcode, err)
	}
	h.logCommand(req, resp, injected, time.Since(start))
	return protocol.EncodeResponse(resp)
}

func (h *connHandler) execute(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	b := h.node.bucket
	switch req.Opcode {
	case protocol.OpSASLListMechs:
		return h.authResponse(req, "", h.session.ListMechanisms(b.Mechanisms()), nil)
	case protocol.OpSASLAuth:
		res, err := h.session.Begin(b.Mechanisms(), b.Credentials(), h.node.Host(), req.Key, req.Value)
		return h.authResponse(req, req.Key, res, err)
	case protocol.OpSASLStep:
		mech := h.session.InProgress()
		res, err := h.session.Continue(req.Value)
		return h.authResponse(req, mech, res, err)
	}

	if req.Opcode.RequiresAuth() && !h.session.Authenticated() {
		return protocol.NewResponse(req, protocol.StatusAuthError, nil), nil
	}

	switch req.Opcode {
	case protocol.OpNoop:
		return protocol.NewResponse(req, protocol.StatusSuccess, nil), nil
	case protocol.OpVersion:
		return protocol.NewResponse(req, protocol.StatusSuccess, []byte(version.Current)), nil
	case protocol.OpHello:
		return protocol.NewResponse(req, protocol.StatusSuccess, req.Value), nil
	case protocol.OpGetErrorMap:
		data, err := h.node.cluster.errorMap.Encode()
		if err != nil {
			return protocol.NewResponse(req, protocol.StatusInternal, nil), nil
		}
		return protocol.NewResponse(req, protocol.StatusSuccess, data), nil
	}

	resp := h.node.cluster.executor.Execute(ctx, h.node, req)
	if resp == nil {
		resp = protocol.NewResponse(req, protocol.StatusInternal, nil)
	}
	return resp, nil
}

func (h *connHandler) authResponse(req *protocol.Request, mech string, res sasl.Result, err error) (*protocol.Response, error) {
	if err != nil {
		h.node.cluster.metrics.AuthAttempt(mech, "malformed")
		return nil, err
	}

	var status protocol.ErrorCode
	switch res.Status {
	case sasl.StatusSuccess:
		status = protocol.StatusSuccess
	case sasl.StatusContinue:
		status = protocol.StatusAuthContinue
	default:
		status = protocol.StatusAuthError
	}

	if req.Opcode != protocol.OpSASLListMechs {
		h.node.cluster.metrics.AuthAttempt(mech, res.Status.String())
		if res.Status == sasl.StatusSuccess {
			h.logAuthenticated(mech)
		}
	}
	return protocol.NewResponse(req, status, res.Payload), nil
}

func (h *connHandler) logAuthenticated(mech string) {
	idx := h.node.index
	h.node.cluster.protoLog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: h.conn.ConnID(),
		Layer:        log.LayerAuth,
		Category:     log.CategoryState,
		RemoteAddr:   h.conn.RemoteAddr().String(),
		Bucket:       h.node.bucket.name,
		NodeIndex:    &idx,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityAuth,
			OldState: "UNAUTHENTICATED",
			NewState: "AUTHENTICATED",
			Reason:   mech,
		},
	})
}

func (h *connHandler) logCommand(req *protocol.Request, resp *protocol.Response, injected bool, elapsed time.Duration) {
	idx := h.node.index
	h.node.cluster.protoLog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: h.conn.ConnID(),
		Direction:    log.DirectionOut,
		Layer:        log.LayerData,
		Category:     log.CategoryMessage,
		Bucket:       h.node.bucket.name,
		NodeIndex:    &idx,
		Command: &log.CommandEvent{
			Name:           req.Opcode.String(),
			Opaque:         req.Opaque,
			Status:         resp.Status.String(),
			Injected:       injected,
			ProcessingTime: &elapsed,
		},
	})
}
