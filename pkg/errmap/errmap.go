package errmap

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cbmock/cbmock-go/pkg/protocol"
)

// Error attributes understood by clients.
const (
	AttrSuccess              = "success"
	AttrItemOnly             = "item-only"
	AttrInvalidInput         = "invalid-input"
	AttrFetchConfig          = "fetch-config"
	AttrConnStateInvalidated = "conn-state-invalidated"
	AttrAuth                 = "auth"
	AttrSpecialHandling      = "special-handling"
	AttrSupport              = "support"
	AttrTemp                 = "temp"
	AttrInternal             = "internal"
	AttrRetryNow             = "retry-now"
	AttrRetryLater           = "retry-later"
)

// ErrorInfo describes one error code.
type ErrorInfo struct {
	Name  string     `json:"name"`
	Desc  string     `json:"desc"`
	Attrs []string   `json:"attrs"`
	Retry *RetrySpec `json:"retry,omitempty"`
}

// ErrorMap maps error codes to their description and retry policy.
type ErrorMap struct {
	Version  int                  `json:"version"`
	Revision int                  `json:"revision"`
	Errors   map[string]ErrorInfo `json:"errors"`
}

// Lookup returns the entry for code.
func (m *ErrorMap) Lookup(code protocol.ErrorCode) (ErrorInfo, bool) {
	info, ok := m.Errors[codeKey(code)]
	return info, ok
}

// Set adds or replaces the entry for code.
func (m *ErrorMap) Set(code protocol.ErrorCode, info ErrorInfo) {
	if m.Errors == nil {
		m.Errors = make(map[string]ErrorInfo)
	}
	m.Errors[codeKey(code)] = info
}

// Encode returns the JSON document sent to clients.
func (m *ErrorMap) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Parse decodes an error map document. Keys must be hexadecimal codes.
func Parse(data []byte) (*ErrorMap, error) {
	var m ErrorMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse error map: %w", err)
	}
	for key := range m.Errors {
		if _, err := strconv.ParseUint(key, 16, 16); err != nil {
			return nil, fmt.Errorf("invalid error code key %q", key)
		}
	}
	return &m, nil
}

func codeKey(code protocol.ErrorCode) string {
	return strconv.FormatUint(uint64(code), 16)
}

// Default returns the error map served when none has been configured.
func Default() *ErrorMap {
	tempRetry := NewRetrySpec(StrategyExponential, 10, 0, 5000, 500)
	busyRetry := NewRetrySpec(StrategyLinear, 50, 0, 10000, 1000)
	vbRetry := NewRetrySpec(StrategyConstant, 100, 0, 5000, 100)

	m := &ErrorMap{Version: 1, Revision: 1}
	for _, code := range protocol.ErrorCodes() {
		info := ErrorInfo{Name: code.String(), Desc: describe(code), Attrs: attrsFor(code)}
		switch code {
		case protocol.StatusTempFail, protocol.StatusOutOfMemory:
			r := tempRetry
			info.Retry = &r
		case protocol.StatusBusy:
			r := busyRetry
			info.Retry = &r
		case protocol.StatusNotMyVBucket:
			r := vbRetry
			info.Retry = &r
		}
		m.Set(code, info)
	}
	return m
}

func attrsFor(code protocol.ErrorCode) []string {
	switch code {
	case protocol.StatusSuccess, protocol.StatusAuthContinue:
		return []string{AttrSuccess}
	case protocol.StatusKeyNotFound, protocol.StatusKeyExists, protocol.StatusNotStored,
		protocol.StatusDeltaBadValue:
		return []string{AttrItemOnly}
	case protocol.StatusTooBig, protocol.StatusInvalid, protocol.StatusRange:
		return []string{AttrInvalidInput}
	case protocol.StatusNotMyVBucket:
		return []string{AttrFetchConfig, AttrRetryNow}
	case protocol.StatusNoBucket, protocol.StatusAccessDenied:
		return []string{AttrConnStateInvalidated}
	case protocol.StatusAuthError, protocol.StatusAuthStale:
		return []string{AttrAuth, AttrConnStateInvalidated}
	case protocol.StatusRollback:
		return []string{AttrSpecialHandling}
	case protocol.StatusUnknownCommand, protocol.StatusNotSupported:
		return []string{AttrSupport}
	case protocol.StatusTempFail, protocol.StatusBusy, protocol.StatusOutOfMemory,
		protocol.StatusNotInitialized:
		return []string{AttrTemp, AttrRetryLater}
	default:
		return []string{AttrInternal}
	}
}

func describe(code protocol.ErrorCode) string {
	switch code {
	case protocol.StatusSuccess:
		return "Success"
	case protocol.StatusKeyNotFound:
		return "Not Found"
	case protocol.StatusKeyExists:
		return "key already exists, or CAS mismatch"
	case protocol.StatusTooBig:
		return "Value too big"
	case protocol.StatusInvalid:
		return "Invalid packet"
	case protocol.StatusNotMyVBucket:
		return "Server does not own the vBucket"
	case protocol.StatusAuthError:
		return "Authentication failed"
	case protocol.StatusAuthContinue:
		return "Authentication continue"
	case protocol.StatusTempFail:
		return "Temporary failure"
	case protocol.StatusBusy:
		return "Server too busy"
	default:
		return code.String()
	}
}
