// Package errmap describes error codes and the retry behaviour clients should
// apply when they see them.
//
// The server never interprets a RetrySpec. It stores the values it was given
// and hands them to clients in the error map returned for GET_ERROR_MAP, so
// malformed combinations (e.g. a ceiling below the interval) pass through
// unchanged.
package errmap
