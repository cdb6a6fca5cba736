package sasl

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	scramSaltLen  = 16
	scramNonceLen = 18
)

type scramStep uint8

const (
	scramExpectClientFirst scramStep = iota
	scramExpectClientFinal
	scramDone
	scramFailed
)

// scramServer is the server side of RFC 5802. The stored secrets are derived
// from the bucket password on each exchange; there is no credential store.
type scramServer struct {
	name       string
	newHash    func() hash.Hash
	creds      Credentials
	host       string
	iterations int

	step            scramStep
	gs2Header       string
	clientFirstBare string
	serverFirst     string
	nonce           string
	salted          []byte
	userKnown       bool
}

func newScramServer(name string, h func() hash.Hash, creds Credentials, host string, iterations int) (*scramServer, error) {
	return &scramServer{
		name:       name,
		newHash:    h,
		creds:      creds,
		host:       host,
		iterations: iterations,
	}, nil
}

func (s *scramServer) Name() string   { return s.name }
func (s *scramServer) Complete() bool { return s.step == scramDone }

func (s *scramServer) Evaluate(response []byte) ([]byte, error) {
	switch s.step {
	case scramExpectClientFirst:
		return s.clientFirst(string(response))
	case scramExpectClientFinal:
		return s.clientFinal(string(response))
	default:
		return nil, s.malformed("exchange already finished")
	}
}

func (s *scramServer) malformed(format string, args ...any) error {
	s.step = scramFailed
	return fmt.Errorf("%w: %s on %s: %s", ErrMalformed, s.name, s.host, fmt.Sprintf(format, args...))
}

func (s *scramServer) clientFirst(msg string) ([]byte, error) {
	// gs2-header: cbind-flag "," [authzid] ","
	parts := strings.SplitN(msg, ",", 3)
	if len(parts) != 3 {
		return nil, s.malformed("missing gs2 header")
	}
	switch parts[0] {
	case "n", "y":
	default:
		return nil, s.malformed("unsupported channel binding %q", parts[0])
	}
	if parts[1] != "" && !strings.HasPrefix(parts[1], "a=") {
		return nil, s.malformed("bad authzid")
	}
	s.gs2Header = parts[0] + "," + parts[1] + ","
	s.clientFirstBare = parts[2]

	attrs, err := parseScramAttrs(s.clientFirstBare)
	if err != nil {
		return nil, s.malformed("%v", err)
	}
	user, ok := attrs["n"]
	if !ok {
		return nil, s.malformed("missing username")
	}
	cnonce, ok := attrs["r"]
	if !ok || cnonce == "" {
		return nil, s.malformed("missing nonce")
	}
	user = decodeScramName(user)

	salt := make([]byte, scramSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("sasl: salt: %w", err)
	}
	snonce := make([]byte, scramNonceLen)
	if _, err := rand.Read(snonce); err != nil {
		return nil, fmt.Errorf("sasl: nonce: %w", err)
	}

	// Unknown users get a full exchange and fail at proof verification.
	password := s.creds.Password
	s.userKnown = user == s.creds.Username
	if !s.userKnown {
		password = base64.StdEncoding.EncodeToString(snonce)
	}

	s.nonce = cnonce + base64.StdEncoding.EncodeToString(snonce)
	s.salted = pbkdf2.Key([]byte(password), salt, s.iterations, s.newHash().Size(), s.newHash)
	s.serverFirst = fmt.Sprintf("r=%s,s=%s,i=%d",
		s.nonce, base64.StdEncoding.EncodeToString(salt), s.iterations)
	s.step = scramExpectClientFinal
	return []byte(s.serverFirst), nil
}

func (s *scramServer) clientFinal(msg string) ([]byte, error) {
	idx := strings.LastIndex(msg, ",p=")
	if idx < 0 {
		return nil, s.malformed("missing proof")
	}
	withoutProof := msg[:idx]
	proof, err := base64.StdEncoding.DecodeString(msg[idx+len(",p="):])
	if err != nil || len(proof) != s.newHash().Size() {
		return nil, s.malformed("bad proof encoding")
	}

	attrs, err := parseScramAttrs(withoutProof)
	if err != nil {
		return nil, s.malformed("%v", err)
	}
	cbind, err := base64.StdEncoding.DecodeString(attrs["c"])
	if err != nil || string(cbind) != s.gs2Header {
		return nil, s.malformed("channel binding mismatch")
	}
	if attrs["r"] != s.nonce {
		return nil, s.malformed("nonce mismatch")
	}

	authMessage := s.clientFirstBare + "," + s.serverFirst + "," + withoutProof
	clientKey := scramHMAC(s.newHash, s.salted, []byte("Client Key"))
	storedKey := scramHash(s.newHash, clientKey)
	clientSig := scramHMAC(s.newHash, storedKey, []byte(authMessage))

	recovered := make([]byte, len(proof))
	for i := range proof {
		recovered[i] = proof[i] ^ clientSig[i]
	}
	if !s.userKnown || !hmac.Equal(scramHash(s.newHash, recovered), storedKey) {
		s.step = scramFailed
		return nil, ErrAuthFailed
	}

	serverKey := scramHMAC(s.newHash, s.salted, []byte("Server Key"))
	serverSig := scramHMAC(s.newHash, serverKey, []byte(authMessage))
	s.step = scramDone
	return []byte("v=" + base64.StdEncoding.EncodeToString(serverSig)), nil
}

// parseScramAttrs parses "k=v,k=v". Each key is a single letter.
func parseScramAttrs(msg string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, field := range strings.Split(msg, ",") {
		if len(field) < 2 || field[1] != '=' {
			return nil, fmt.Errorf("bad attribute %q", field)
		}
		attrs[field[:1]] = field[2:]
	}
	return attrs, nil
}

func decodeScramName(n string) string {
	return strings.NewReplacer("=2C", ",", "=3D", "=").Replace(n)
}

func encodeScramName(n string) string {
	return strings.NewReplacer("=", "=3D", ",", "=2C").Replace(n)
}

func scramHMAC(h func() hash.Hash, key, data []byte) []byte {
	m := hmac.New(h, key)
	m.Write(data)
	return m.Sum(nil)
}

func scramHash(h func() hash.Hash, data []byte) []byte {
	d := h()
	d.Write(data)
	return d.Sum(nil)
}

// parseIterations reads the i= attribute of a server-first message.
func parseIterations(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: bad iteration count %q", ErrMalformed, v)
	}
	return n, nil
}
