package auth

import (
	"errors"
	"fmt"
)

// Session errors
var (
	ErrNoSession        = errors.New("no active session")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrEmptyToken       = errors.New("auth response carried no access token")
)

// AuthError is returned by explicit user actions (login, register, logout).
// Message is the human-readable text shown to the user.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
