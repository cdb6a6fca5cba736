// Package sasl implements the per-connection authentication exchange of an
// emulated node.
//
// # States
//
//	UNAUTHENTICATED --SASL_AUTH(PLAIN ok)------------------> AUTHENTICATED
//	UNAUTHENTICATED --SASL_AUTH(SCRAM-*)--> MECHANISM_SELECTED
//	MECHANISM_SELECTED --SASL_STEP (n rounds)--------------> AUTHENTICATED
//
// Listing mechanisms never changes state. PLAIN completes in one round and
// holds no intermediate state. Authentication is monotonic: once a session is
// authenticated, later failures do not revoke it.
//
// # Errors
//
// A credential mismatch is a normal Result with StatusAuthError. A message
// that cannot be parsed, or a step that makes no sense for the mechanism,
// yields an error wrapping ErrMalformed; callers treat it as fatal for the
// connection.
//
// # Mechanisms
//
//   - PLAIN (RFC 4616)
//   - SCRAM-SHA1, SCRAM-SHA256, SCRAM-SHA512 (RFC 5802)
package sasl
