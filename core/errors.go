package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// IsValidationError reports whether the cause of err is a *ValidationError.
func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// ErrorKind tags a store-level failure independently of the backing store that produced it.
type ErrorKind string

const (
	NotFound           ErrorKind = "NotFound"
	Conflict           ErrorKind = "Conflict"
	Unavailable        ErrorKind = "Unavailable"
	PermissionDenied   ErrorKind = "PermissionDenied"
	InvalidCredentials ErrorKind = "InvalidCredentials"
	SerializationError ErrorKind = "SerializationError"
)

// StoreError is returned by every data-access operation instead of raw store errors.
type StoreError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func NewStoreError(kind ErrorKind, op string, err error) error {
	return &StoreError{Kind: kind, Op: op, Err: err}
}

func (e *StoreError) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *StoreError) Unwrap() error { return e.Err }

// ErrInvalidCredentials is the only error a failed login ever returns.
var ErrInvalidCredentials error = &StoreError{
	Kind: InvalidCredentials,
	Op:   "login",
	Err:  errors.New("invalid username or password"),
}

// KindOf returns the ErrorKind carried by err, looking through errors.Wrap layers.
func KindOf(err error) (ErrorKind, bool) {
	if err == nil {
		return "", false
	}
	if se, ok := errors.Cause(err).(*StoreError); ok {
		return se.Kind, true
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
