package core

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidAmount      = errors.New("amount must be a positive number")
	ErrMissingCategory    = errors.New("category reference is required")
	ErrMissingDate        = errors.New("date is required")
	ErrEmptyName          = errors.New("name is required")
	ErrInvalidKind        = errors.New("type must be income or expense")
	ErrMissingCredentials = errors.New("email and password are required")
	ErrMissingID          = errors.New("id is required")
)

// Failures produced by the stores. Remote failures are always *RemoteError
// values carrying one of the first three sentinels as their kind.
var (
	ErrNetworkUnavailable    = errors.New("remote store unreachable")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrRejected              = errors.New("request rejected by server")
	ErrInvalidServerResponse = errors.New("invalid server response")
	ErrDuplicateCategory     = errors.New("category already exists")
	ErrNotFound              = errors.New("not found")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrAlreadyRegistered     = errors.New("email already registered")
	ErrNotAuthenticated      = errors.New("not authenticated")
)

// ValidationError is returned before any store is touched.
type ValidationError struct {
	Field string
	Err   error
}

// Invalid wraps err as a validation failure on field.
func Invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RemoteError is a classified Remote Client failure.
type RemoteError struct {
	Kind    error // ErrNetworkUnavailable, ErrUnauthorized or ErrRejected
	Status  int   // zero for network failures
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%v (status %d): %s", e.Kind, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%v (status %d)", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool { return target == e.Kind }

// IsNetworkUnavailable reports whether err should move the arbiter to local mode.
func IsNetworkUnavailable(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable)
}
