package sasl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runScram(t *testing.T, s *Session, mech, user, pass string) (Result, error) {
	t.Helper()
	c, err := NewScramClient(mech, user, pass)
	require.NoError(t, err)

	res, err := s.Begin(Mechanisms(), testCreds, "127.0.0.1", mech, c.First())
	require.NoError(t, err)
	require.Equal(t, StatusContinue, res.Status)
	assert.Equal(t, mech, s.InProgress())

	final, err := c.Final(res.Payload)
	require.NoError(t, err)

	res, err = s.Continue(final)
	if err == nil && res.Status == StatusSuccess {
		require.NoError(t, c.Verify(res.Payload))
	}
	return res, err
}

func TestScramSuccess(t *testing.T) {
	for _, mech := range []string{MechScramSHA1, MechScramSHA256, MechScramSHA512} {
		t.Run(mech, func(t *testing.T) {
			s := NewSession()
			res, err := runScram(t, s, mech, "default", "secret")

			require.NoError(t, err)
			assert.Equal(t, StatusSuccess, res.Status)
			assert.True(t, s.Authenticated())
			assert.Equal(t, mech, s.AuthenticatedWith())
			assert.Empty(t, s.InProgress())
		})
	}
}

func TestScramWrongPassword(t *testing.T) {
	s := NewSession()
	res, err := runScram(t, s, MechScramSHA256, "default", "wrong")

	require.NoError(t, err)
	assert.Equal(t, StatusAuthError, res.Status)
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.InProgress())

	// The discarded mechanism cannot be stepped again.
	res, err = s.Continue([]byte("c=biws,r=x,p=AAAA"))
	require.NoError(t, err)
	assert.Equal(t, StatusAuthError, res.Status)
}

func TestScramUnknownUser(t *testing.T) {
	s := NewSession()
	res, err := runScram(t, s, MechScramSHA1, "intruder", "secret")

	require.NoError(t, err)
	assert.Equal(t, StatusAuthError, res.Status)
	assert.False(t, s.Authenticated())
}

func TestScramMalformedIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		first string
	}{
		{"no gs2 header", "n=default,r=abc"},
		{"channel binding", "p=tls-unique,,n=default,r=abc"},
		{"missing nonce", "n,,n=default"},
		{"garbage attribute", "n,,n=default,garbage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession()
			_, err := s.Begin(Mechanisms(), testCreds, "h", MechScramSHA1, []byte(tt.first))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
			assert.Empty(t, s.InProgress())
		})
	}
}

func TestScramNonceMismatch(t *testing.T) {
	s := NewSession()
	c, err := NewScramClient(MechScramSHA1, "default", "secret")
	require.NoError(t, err)

	res, err := s.Begin(Mechanisms(), testCreds, "h", MechScramSHA1, c.First())
	require.NoError(t, err)
	require.Equal(t, StatusContinue, res.Status)

	proof := "AAAAAAAAAAAAAAAAAAAAAAAAAAA=" // 20 bytes
	_, err = s.Continue([]byte("c=biws,r=notthenonce,p=" + proof))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestScramClientRejectsForeignNonce(t *testing.T) {
	c, err := NewScramClient(MechScramSHA512, "default", "secret")
	require.NoError(t, err)
	c.First()

	_, err = c.Final([]byte("r=someoneelse,s=c2FsdA==,i=4096"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNewMechanismUnknown(t *testing.T) {
	_, err := NewMechanism(MechPlain, testCreds, "h")
	assert.ErrorIs(t, err, ErrUnknownMechanism)

	_, err = NewScramClient("SCRAM-MD5", "a", "b")
	assert.ErrorIs(t, err, ErrUnknownMechanism)
}

func TestScramNames(t *testing.T) {
	assert.Equal(t, "a=2Cb=3Dc", encodeScramName("a,b=c"))
	assert.Equal(t, "a,b=c", decodeScramName("a=2Cb=3Dc"))
}
