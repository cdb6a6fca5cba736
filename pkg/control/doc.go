// Package control implements the out-of-band control plane.
//
// A harness issues commands by path, "/mock/<COMMAND>", with an optional
// payload taken from the query string or the request body. Commands answer
// with a CommandStatus; a validation failure is a normal "fail" status, not
// an HTTP error. Unknown commands and malformed paths return the help text
// with 404.
package control
