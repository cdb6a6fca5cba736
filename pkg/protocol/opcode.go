package protocol

import (
	"fmt"
	"strings"
)

// Opcode identifies a data-plane command.
type Opcode uint8

const (
	OpGet           Opcode = 0x00
	OpSet           Opcode = 0x01
	OpAdd           Opcode = 0x02
	OpReplace       Opcode = 0x03
	OpDelete        Opcode = 0x04
	OpIncrement     Opcode = 0x05
	OpDecrement     Opcode = 0x06
	OpQuit          Opcode = 0x07
	OpFlush         Opcode = 0x08
	OpNoop          Opcode = 0x0a
	OpVersion       Opcode = 0x0b
	OpAppend        Opcode = 0x0e
	OpPrepend       Opcode = 0x0f
	OpStat          Opcode = 0x10
	OpTouch         Opcode = 0x1c
	OpHello         Opcode = 0x1f
	OpSASLListMechs Opcode = 0x20
	OpSASLAuth      Opcode = 0x21
	OpSASLStep      Opcode = 0x22
	OpGetErrorMap   Opcode = 0xfe
)

var opcodeNames = map[Opcode]string{
	OpGet:           "GET",
	OpSet:           "SET",
	OpAdd:           "ADD",
	OpReplace:       "REPLACE",
	OpDelete:        "DELETE",
	OpIncrement:     "INCREMENT",
	OpDecrement:     "DECREMENT",
	OpQuit:          "QUIT",
	OpFlush:         "FLUSH",
	OpNoop:          "NOOP",
	OpVersion:       "VERSION",
	OpAppend:        "APPEND",
	OpPrepend:       "PREPEND",
	OpStat:          "STAT",
	OpTouch:         "TOUCH",
	OpHello:         "HELLO",
	OpSASLListMechs: "SASL_LIST_MECHS",
	OpSASLAuth:      "SASL_AUTH",
	OpSASLStep:      "SASL_STEP",
	OpGetErrorMap:   "GET_ERROR_MAP",
}

// String returns the protocol name of the opcode.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02x)", uint8(o))
}

// IsSASL reports whether the opcode belongs to the authentication exchange.
func (o Opcode) IsSASL() bool {
	return o == OpSASLListMechs || o == OpSASLAuth || o == OpSASLStep
}

// RequiresAuth reports whether o is refused on an unauthenticated connection.
func (o Opcode) RequiresAuth() bool {
	switch o {
	case OpNoop, OpVersion, OpHello, OpQuit, OpGetErrorMap,
		OpSASLListMechs, OpSASLAuth, OpSASLStep:
		return false
	}
	return true
}

// OpcodeByName looks up an opcode by its protocol name, case-insensitively.
func OpcodeByName(name string) (Opcode, bool) {
	name = strings.ToUpper(name)
	for op, n := range opcodeNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}
