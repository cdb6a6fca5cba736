// Package cert provides the TLS identity of the emulator's data ports.
//
// An Identity is either generated on startup as a self-signed ECDSA P-256
// certificate covering the listen host, or loaded from PEM files. Clients
// trust a self-signed identity through Identity.CertPool.
package cert
