// Package transport carries the data plane of an emulated node.
//
// Every message is a CBOR document carried in a length-prefixed frame:
//
//	┌────────────────────────────────┐
//	│      CBOR request/response     │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│        TLS (optional)          │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// The server runs one goroutine per connection. Each connection gets its own
// FrameHandler from ServerConfig.NewHandler, so per-connection state such as
// authentication lives in the handler and needs no locking.
package transport
