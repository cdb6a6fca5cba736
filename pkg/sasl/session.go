package sasl

import (
	"errors"
	"slices"
	"strings"
)

// Status is the outcome of one authentication step.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusContinue
	StatusAuthError
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusContinue:
		return "AUTH_CONTINUE"
	case StatusAuthError:
		return "AUTH_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Result is the response to one authentication request.
type Result struct {
	Status  Status
	Payload []byte
}

func authError() Result {
	return Result{Status: StatusAuthError}
}

// Session is the authentication state of one connection. It is owned by the
// connection's worker and is not safe for concurrent use.
type Session struct {
	mech          Mechanism
	authenticated bool
	authMech      string
}

// NewSession creates an unauthenticated session.
func NewSession() *Session {
	return &Session{}
}

// Authenticated reports whether the connection has authenticated.
func (s *Session) Authenticated() bool {
	return s.authenticated
}

// AuthenticatedWith returns the mechanism that authenticated the session.
func (s *Session) AuthenticatedWith() string {
	return s.authMech
}

// InProgress returns the name of the mechanism awaiting a step, if any.
func (s *Session) InProgress() string {
	if s.mech == nil {
		return ""
	}
	return s.mech.Name()
}

// ListMechanisms returns the space-joined supported mechanisms.
func (s *Session) ListMechanisms(supported []string) Result {
	return Result{Status: StatusSuccess, Payload: []byte(strings.Join(supported, " "))}
}

// Begin starts an exchange with mech. supported is the set the node's bucket
// advertises; creds and host scope the mechanism instance.
func (s *Session) Begin(supported []string, creds Credentials, host, mech string, initial []byte) (Result, error) {
	if !slices.Contains(supported, mech) || !IsKnown(mech) {
		return authError(), nil
	}

	if mech == MechPlain {
		if !verifyPlain(creds, initial) {
			return authError(), nil
		}
		s.markAuthenticated(MechPlain)
		return Result{Status: StatusSuccess, Payload: plainSuccess}, nil
	}

	m, err := NewMechanism(mech, creds, host)
	if err != nil {
		return Result{}, err
	}
	s.mech = m
	return s.step(initial)
}

// Continue feeds the next client message to the in-progress mechanism.
func (s *Session) Continue(data []byte) (Result, error) {
	if s.mech == nil {
		return authError(), nil
	}
	return s.step(data)
}

func (s *Session) step(data []byte) (Result, error) {
	m := s.mech
	challenge, err := m.Evaluate(data)
	if err != nil {
		s.mech = nil
		if errors.Is(err, ErrAuthFailed) {
			return authError(), nil
		}
		return Result{}, err
	}

	if m.Complete() {
		s.mech = nil
		s.markAuthenticated(m.Name())
		return Result{Status: StatusSuccess, Payload: challenge}, nil
	}
	return Result{Status: StatusContinue, Payload: challenge}, nil
}

func (s *Session) markAuthenticated(mech string) {
	s.authenticated = true
	s.authMech = mech
}
