// Package protocol defines the data-plane vocabulary spoken by emulated nodes.
//
// The real cluster speaks the memcached binary protocol. Its framing is not
// part of this module; nodes exchange the same opcodes and status codes as
// CBOR maps with integer keys, carried in length-prefixed frames.
//
// # Messages
//
//	Request  {1: opcode, 2: opaque, 3: key, 4: value}
//	Response {1: opcode, 2: opaque, 3: status, 4: value}
//
// The opaque value is echoed back unchanged so clients can correlate
// responses with requests.
package protocol
