package model

import (
	"errors"
	"fmt"
)

var (
	// Directory related errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")

	// Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)

type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "INVALID_CREDENTIALS"
	KindPasswordMismatch   ErrorKind = "PASSWORD_MISMATCH"
	KindWeakPassword       ErrorKind = "WEAK_PASSWORD"
	KindEmailTaken         ErrorKind = "EMAIL_TAKEN"
	KindInvalidToken       ErrorKind = "INVALID_TOKEN"
	KindNoRefreshToken     ErrorKind = "NO_REFRESH_TOKEN"
	KindBusy               ErrorKind = "BUSY"
	KindValidation         ErrorKind = "VALIDATION"
	KindForbidden          ErrorKind = "FORBIDDEN"
	KindUnknown            ErrorKind = "UNKNOWN"
)

// AuthError is the typed failure raised by the identity provider and the
// orchestrator. Message is filled in at the orchestrator boundary.
type AuthError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e == nil {
		return ""
	}

	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches on kind only, so errors.Is(err, ErrInvalidCredentials) holds for
// any invalid credentials failure regardless of its message.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidCredentials = &AuthError{Kind: KindInvalidCredentials}
	ErrPasswordMismatch   = &AuthError{Kind: KindPasswordMismatch}
	ErrWeakPassword       = &AuthError{Kind: KindWeakPassword}
	ErrEmailTaken         = &AuthError{Kind: KindEmailTaken}
	ErrInvalidToken       = &AuthError{Kind: KindInvalidToken}
	ErrNoRefreshToken     = &AuthError{Kind: KindNoRefreshToken}
	ErrBusy               = &AuthError{Kind: KindBusy}
)

func NewAuthError(kind ErrorKind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

// KindOf reports the kind of err, or KindUnknown when err is not an AuthError.
func KindOf(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindUnknown
}
