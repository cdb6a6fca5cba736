package protocol

import (
	"fmt"
	"slices"
)

// ErrorCode is a response status as defined by the memcached binary protocol.
type ErrorCode uint16

const (
	StatusSuccess        ErrorCode = 0x00
	StatusKeyNotFound    ErrorCode = 0x01
	StatusKeyExists      ErrorCode = 0x02
	StatusTooBig         ErrorCode = 0x03
	StatusInvalid        ErrorCode = 0x04
	StatusNotStored      ErrorCode = 0x05
	StatusDeltaBadValue  ErrorCode = 0x06
	StatusNotMyVBucket   ErrorCode = 0x07
	StatusNoBucket       ErrorCode = 0x08
	StatusAuthStale      ErrorCode = 0x1f
	StatusAuthError      ErrorCode = 0x20
	StatusAuthContinue   ErrorCode = 0x21
	StatusRange          ErrorCode = 0x22
	StatusRollback       ErrorCode = 0x23
	StatusAccessDenied   ErrorCode = 0x24
	StatusNotInitialized ErrorCode = 0x25
	StatusUnknownCommand ErrorCode = 0x81
	StatusOutOfMemory    ErrorCode = 0x82
	StatusNotSupported   ErrorCode = 0x83
	StatusInternal       ErrorCode = 0x84
	StatusBusy           ErrorCode = 0x85
	StatusTempFail       ErrorCode = 0x86
)

var errorCodeNames = map[ErrorCode]string{
	StatusSuccess:        "SUCCESS",
	StatusKeyNotFound:    "KEY_ENOENT",
	StatusKeyExists:      "KEY_EEXISTS",
	StatusTooBig:         "E2BIG",
	StatusInvalid:        "EINVAL",
	StatusNotStored:      "NOT_STORED",
	StatusDeltaBadValue:  "DELTA_BADVAL",
	StatusNotMyVBucket:   "NOT_MY_VBUCKET",
	StatusNoBucket:       "NO_BUCKET",
	StatusAuthStale:      "AUTH_STALE",
	StatusAuthError:      "AUTH_ERROR",
	StatusAuthContinue:   "AUTH_CONTINUE",
	StatusRange:          "ERANGE",
	StatusRollback:       "ROLLBACK",
	StatusAccessDenied:   "EACCESS",
	StatusNotInitialized: "NOT_INITIALIZED",
	StatusUnknownCommand: "UNKNOWN_COMMAND",
	StatusOutOfMemory:    "ENOMEM",
	StatusNotSupported:   "NOT_SUPPORTED",
	StatusInternal:       "EINTERNAL",
	StatusBusy:           "EBUSY",
	StatusTempFail:       "ETMPFAIL",
}

// String returns the protocol name of the code.
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02x)", uint16(c))
}

// IsKnown reports whether c is one of the codes this server can emit.
func (c ErrorCode) IsKnown() bool {
	_, ok := errorCodeNames[c]
	return ok
}

// IsSuccess returns true for StatusSuccess.
func (c ErrorCode) IsSuccess() bool {
	return c == StatusSuccess
}

// ErrorCodes returns every known code in ascending order.
func ErrorCodes() []ErrorCode {
	codes := make([]ErrorCode, 0, len(errorCodeNames))
	for c := range errorCodeNames {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	return codes
}
