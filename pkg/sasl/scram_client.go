package sasl

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// ScramClient drives the client side of a SCRAM exchange.
type ScramClient struct {
	mech     string
	newHash  func() hash.Hash
	username string
	password string

	cnonce          string
	clientFirstBare string
	serverSignature []byte
}

// NewScramClient creates a client for one of the SCRAM mechanisms.
func NewScramClient(mech, username, password string) (*ScramClient, error) {
	h, ok := scramHashes[mech]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMechanism, mech)
	}
	nonce := make([]byte, scramNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return &ScramClient{
		mech:     mech,
		newHash:  h,
		username: username,
		password: password,
		cnonce:   base64.StdEncoding.EncodeToString(nonce),
	}, nil
}

// Mechanism returns the mechanism name.
func (c *ScramClient) Mechanism() string { return c.mech }

// First returns the client-first message sent with SASL_AUTH.
func (c *ScramClient) First() []byte {
	c.clientFirstBare = "n=" + encodeScramName(c.username) + ",r=" + c.cnonce
	return []byte("n,," + c.clientFirstBare)
}

// Final answers the server-first challenge with the client-final message.
func (c *ScramClient) Final(serverFirst []byte) ([]byte, error) {
	attrs, err := parseScramAttrs(string(serverFirst))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	nonce := attrs["r"]
	if !strings.HasPrefix(nonce, c.cnonce) {
		return nil, fmt.Errorf("%w: server nonce does not extend client nonce", ErrMalformed)
	}
	salt, err := base64.StdEncoding.DecodeString(attrs["s"])
	if err != nil {
		return nil, fmt.Errorf("%w: bad salt", ErrMalformed)
	}
	iterations, err := parseIterations(attrs["i"])
	if err != nil {
		return nil, err
	}

	withoutProof := "c=" + base64.StdEncoding.EncodeToString([]byte("n,,")) + ",r=" + nonce
	authMessage := c.clientFirstBare + "," + string(serverFirst) + "," + withoutProof

	salted := pbkdf2.Key([]byte(c.password), salt, iterations, c.newHash().Size(), c.newHash)
	clientKey := scramHMAC(c.newHash, salted, []byte("Client Key"))
	storedKey := scramHash(c.newHash, clientKey)
	clientSig := scramHMAC(c.newHash, storedKey, []byte(authMessage))
	proof := make([]byte, len(clientKey))
	for i := range clientKey {
		proof[i] = clientKey[i] ^ clientSig[i]
	}

	serverKey := scramHMAC(c.newHash, salted, []byte("Server Key"))
	c.serverSignature = scramHMAC(c.newHash, serverKey, []byte(authMessage))

	return []byte(withoutProof + ",p=" + base64.StdEncoding.EncodeToString(proof)), nil
}

// Verify checks the server-final message.
func (c *ScramClient) Verify(serverFinal []byte) error {
	v, ok := strings.CutPrefix(string(serverFinal), "v=")
	if !ok {
		return fmt.Errorf("%w: missing server signature", ErrMalformed)
	}
	sig, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return fmt.Errorf("%w: bad server signature", ErrMalformed)
	}
	if !hmac.Equal(sig, c.serverSignature) {
		return ErrAuthFailed
	}
	return nil
}
