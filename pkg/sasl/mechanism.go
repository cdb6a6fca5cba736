package sasl

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"slices"
)

// Mechanism names as advertised by SASL_LIST_MECHS.
const (
	MechPlain        = "PLAIN"
	MechScramSHA1    = "SCRAM-SHA1"
	MechScramSHA256  = "SCRAM-SHA256"
	MechScramSHA512  = "SCRAM-SHA512"
	DefaultIteration = 4096
)

var (
	// ErrMalformed indicates a negotiation that cannot continue. It is fatal
	// for the connection.
	ErrMalformed = errors.New("sasl: malformed negotiation")

	// ErrAuthFailed indicates credentials that did not verify.
	ErrAuthFailed = errors.New("sasl: authentication failed")

	// ErrUnknownMechanism is returned by NewMechanism for unknown names.
	ErrUnknownMechanism = errors.New("sasl: unknown mechanism")
)

// Mechanism is a server-side challenge/response negotiation.
type Mechanism interface {
	// Name returns the mechanism name.
	Name() string

	// Evaluate consumes one client message and returns the next challenge.
	Evaluate(response []byte) ([]byte, error)

	// Complete reports whether the exchange finished successfully.
	Complete() bool
}

// Credentials are the secrets a mechanism verifies against.
type Credentials struct {
	Username string
	Password string
}

var scramHashes = map[string]func() hash.Hash{
	MechScramSHA1:   sha1.New,
	MechScramSHA256: sha256.New,
	MechScramSHA512: sha512.New,
}

// Mechanisms returns every mechanism the server implements, strongest first.
func Mechanisms() []string {
	return []string{MechScramSHA512, MechScramSHA256, MechScramSHA1, MechPlain}
}

// IsKnown reports whether name is an implemented mechanism.
func IsKnown(name string) bool {
	return slices.Contains(Mechanisms(), name)
}

// NewMechanism instantiates a challenge/response mechanism scoped to creds.
// host identifies the server side of the exchange. PLAIN is not a
// Mechanism; it is handled directly by the Session.
func NewMechanism(name string, creds Credentials, host string) (Mechanism, error) {
	h, ok := scramHashes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMechanism, name)
	}
	return newScramServer(name, h, creds, host, DefaultIteration)
}
