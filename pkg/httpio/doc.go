// Package httpio is the control-plane HTTP/1.x server.
//
// Each accepted connection is served by its own worker goroutine that reads
// one request, routes it by path, writes one response and repeats until the
// peer closes, a protocol error occurs, or the server stops. Handlers are
// ordinary http.Handlers.
//
// Routing patterns are exact paths, "prefix*", "*suffix" or "*". An exact
// match wins over a wildcard and a longer wildcard wins over a shorter one.
// Registering "/x" also registers "/x/". The "*" pattern is pre-registered
// to answer 404.
//
// Stop closes the listener, then closes every live connection and blocks
// until all workers have removed themselves from the worker set.
package httpio
