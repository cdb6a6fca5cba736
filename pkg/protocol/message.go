package protocol

// Request is a data-plane command sent by a client to a node.
type Request struct {
	Opcode Opcode `cbor:"1,keyasint"`
	Opaque uint32 `cbor:"2,keyasint"`
	Key    string `cbor:"3,keyasint,omitempty"`
	Value  []byte `cbor:"4,keyasint,omitempty"`
}

// Response is a node's answer to a Request.
type Response struct {
	Opcode Opcode    `cbor:"1,keyasint"`
	Opaque uint32    `cbor:"2,keyasint"`
	Status ErrorCode `cbor:"3,keyasint"`
	Value  []byte    `cbor:"4,keyasint,omitempty"`
}

// NewResponse creates a response to req with the given status and value.
func NewResponse(req *Request, status ErrorCode, value []byte) *Response {
	return &Response{
		Opcode: req.Opcode,
		Opaque: req.Opaque,
		Status: status,
		Value:  value,
	}
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Status.IsSuccess()
}
