package httpio

import (
	"context"
	"net"
)

type contextKey struct{}

// RequestContext is the per-request state a worker attaches to the request
// context. A fresh value is created for every request on a connection, so
// nothing set by one request is visible to the next.
type RequestContext struct {
	// ConnID identifies the connection.
	ConnID string

	// Conn is the underlying connection.
	Conn net.Conn

	// User is the authenticated user for this request, if any.
	User string

	bail bool
}

// RequestContextFrom returns the RequestContext of a request served by this
// package, or nil.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rc
}

func withRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}
