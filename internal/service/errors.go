// Package service holds the application logic between the HTTP handlers
// and the repositories: accounts and sessions, forms, and submissions.
package service

import (
	"errors"

	"github.com/iliyamo/formbox/internal/repository"
)

// Errors returned by services in addition to the repository sentinels
// (repository.ErrNotFound, ErrForbidden, ErrConflict), which pass
// through unchanged.
var (
	// ErrValidation marks input that failed a business rule.  It is
	// wrapped with a message that is safe to show to the client.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned by Login for an unknown email or
	// a wrong password; the two cases are not distinguished.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned when a session credential is
	// missing, invalid, expired or revoked.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Error pairs one of the sentinel errors with a message that is safe to
// show to the client.  It unwraps to Kind, so errors.Is works on it.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func invalid(msg string) error { return &Error{Kind: ErrValidation, Msg: msg} }

func conflict(msg string) error { return &Error{Kind: repository.ErrConflict, Msg: msg} }
