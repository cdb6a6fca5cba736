package cluster

import (
	"github.com/cbmock/cbmock-go/pkg/protocol"
)

// FailureContext makes a node answer matching operations with Code.
//
// Remaining > 0 fails that many matching operations, Remaining < 0 fails
// them until the context is replaced, and Remaining == 0 is inert. A nil
// Operation matches every opcode.
//
// Values are never modified after they are published to a Node.
type FailureContext struct {
	Code      protocol.ErrorCode
	Remaining int
	Operation *protocol.Opcode
}

// NewFailureContext creates a context. op may be nil to match all operations.
func NewFailureContext(code protocol.ErrorCode, count int, op *protocol.Opcode) *FailureContext {
	fc := &FailureContext{Code: code, Remaining: count}
	if op != nil {
		o := *op
		fc.Operation = &o
	}
	return fc
}

// Active reports whether the context can still fail an operation.
func (fc *FailureContext) Active() bool {
	return fc != nil && fc.Remaining != 0
}

// Matches reports whether op is subject to this context.
func (fc *FailureContext) Matches(op protocol.Opcode) bool {
	if !fc.Active() {
		return false
	}
	return fc.Operation == nil || *fc.Operation == op
}

// Equal reports whether two contexts describe the same injection.
func (fc *FailureContext) Equal(other *FailureContext) bool {
	if fc == nil || other == nil {
		return fc == other
	}
	if fc.Code != other.Code || fc.Remaining != other.Remaining {
		return false
	}
	if fc.Operation == nil || other.Operation == nil {
		return fc.Operation == other.Operation
	}
	return *fc.Operation == *other.Operation
}

// consumed returns the context that replaces fc after one matching
// operation failed.
func (fc *FailureContext) consumed() *FailureContext {
	if fc.Remaining < 0 {
		return fc
	}
	if fc.Remaining == 1 {
		return nil
	}
	next := *fc
	next.Remaining--
	return &next
}
