package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes of alias resolution and tunnel
// sessions. Callers should use [errors.Is] to match these.
var (
	// ErrDirectory indicates an alias could not be resolved because the
	// directory was unreachable or returned an unusable document.
	ErrDirectory = errors.New("directory lookup failed")

	// ErrAliasNotFound means the directory has no entry for the alias.
	ErrAliasNotFound = errors.New("alias not found")

	// ErrProtocol indicates a malformed or truncated handshake record.
	ErrProtocol = errors.New("protocol error")

	// ErrAuth indicates the handshake credential did not match.
	ErrAuth = errors.New("authentication failed")

	// ErrUpstream means the outbound connection could not be established.
	ErrUpstream = errors.New("upstream unreachable")

	// ErrRelay indicates an I/O failure in one relay direction.
	ErrRelay = errors.New("relay i/o error")
)

// SessionError wraps an underlying error with tunnel session context.
type SessionError struct {
	SessionID string
	State     string
	Err       error
}

func (e *SessionError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("session %s: %s: %v", e.SessionID, e.State, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
