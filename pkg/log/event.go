package log

import (
	"time"
)

// Event is a protocol event captured at any layer.
type Event struct {
	Timestamp    time.Time `cbor:"1,keyasint"`
	ConnectionID string    `cbor:"2,keyasint"`
	Direction    Direction `cbor:"3,keyasint"`
	Layer        Layer     `cbor:"4,keyasint"`
	Category     Category  `cbor:"5,keyasint"`
	RemoteAddr   string    `cbor:"6,keyasint,omitempty"`

	// Bucket and NodeIndex identify the emulated node, when there is one.
	Bucket    string `cbor:"7,keyasint,omitempty"`
	NodeIndex *int   `cbor:"8,keyasint,omitempty"`

	// Exactly one of these is set.
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Command     *CommandEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Fault       *FaultEvent       `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates message flow relative to the server.
type Direction uint8

const (
	DirectionIn  Direction = 0
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which part of the server captured the event.
type Layer uint8

const (
	// LayerTransport is the data-plane framing layer.
	LayerTransport Layer = 0
	// LayerData is data-plane command execution.
	LayerData Layer = 1
	// LayerAuth is the authentication exchange.
	LayerAuth Layer = 2
	// LayerControl is the control plane.
	LayerControl Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerData:
		return "DATA"
	case LayerAuth:
		return "AUTH"
	case LayerControl:
		return "CONTROL"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event.
type Category uint8

const (
	CategoryMessage Category = 0
	CategoryState   Category = 1
	CategoryFault   Category = 2
	CategoryError   Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryFault:
		return "FAULT"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes, including the length prefix.
	Size int `cbor:"1,keyasint"`

	// Data may be truncated for large frames.
	Data      []byte `cbor:"2,keyasint,omitempty"`
	Truncated bool   `cbor:"3,keyasint,omitempty"`
}

// CommandEvent captures one executed data-plane or control command.
type CommandEvent struct {
	// Name is the opcode or control command name.
	Name   string `cbor:"1,keyasint"`
	Opaque uint32 `cbor:"2,keyasint,omitempty"`

	// Status is the resulting status name (response only).
	Status string `cbor:"3,keyasint,omitempty"`

	// Injected is set when Status was substituted by fault injection.
	Injected bool `cbor:"4,keyasint,omitempty"`

	ProcessingTime *time.Duration `cbor:"5,keyasint,omitempty"`
}

// StateChangeEvent captures connection and authentication lifecycle events.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	StateEntityConnection StateEntity = 0
	StateEntityAuth       StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityAuth:
		return "AUTH"
	default:
		return "UNKNOWN"
	}
}

// FaultEvent captures a failure context being installed or triggered.
type FaultEvent struct {
	Action    FaultAction `cbor:"1,keyasint"`
	Code      uint16      `cbor:"2,keyasint"`
	Remaining int         `cbor:"3,keyasint"`

	// Operation is nil when the fault matches every operation.
	Operation *uint8 `cbor:"4,keyasint,omitempty"`
}

// FaultAction distinguishes installation from consumption.
type FaultAction uint8

const (
	FaultInstalled FaultAction = 0
	FaultTriggered FaultAction = 1
)

// String returns the action name.
func (a FaultAction) String() string {
	switch a {
	case FaultInstalled:
		return "INSTALLED"
	case FaultTriggered:
		return "TRIGGERED"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
	Context string `cbor:"3,keyasint,omitempty"`
}
