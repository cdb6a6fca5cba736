// Package cluster models the emulated cluster: buckets, their nodes, and the
// per-node fault injection state consulted by every data-plane request.
//
// A Node's FailureContext is an immutable value held in an atomic pointer.
// The control plane replaces it wholesale; data-plane workers consume it with
// compare-and-swap, so no reader ever sees a half-written context.
package cluster
