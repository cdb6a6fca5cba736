// Package client provides test-side clients for a running emulator: a
// control client speaking the HTTP /mock API and a data client speaking
// the framed CBOR protocol to a single node.
package client
