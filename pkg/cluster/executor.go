package cluster

import (
	"context"

	"github.com/cbmock/cbmock-go/pkg/protocol"
)

// Executor answers data-plane operations outside the emulation core, such
// as key-value commands.
type Executor interface {
	Execute(ctx context.Context, node *Node, req *protocol.Request) *protocol.Response
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, node *Node, req *protocol.Request) *protocol.Response

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, node *Node, req *protocol.Request) *protocol.Response {
	return f(ctx, node, req)
}

// NotSupportedExecutor answers every operation with NOT_SUPPORTED.
type NotSupportedExecutor struct{}

// Execute implements Executor.
func (NotSupportedExecutor) Execute(_ context.Context, _ *Node, req *protocol.Request) *protocol.Response {
	return protocol.NewResponse(req, protocol.StatusNotSupported, nil)
}
