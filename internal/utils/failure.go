package utils

import (
	"errors"
	"fmt"
)

type ErrorType int

const (
	ErrInternal ErrorType = iota
	ErrBadInput
	ErrNotAllowed
	ErrNotFound
	ErrTooLarge
	ErrBusy
)

func (t ErrorType) String() string {
	switch t {
	case ErrInternal:
		return "internal"
	case ErrBadInput:
		return "bad_input"
	case ErrNotAllowed:
		return "not_allowed"
	case ErrNotFound:
		return "not_found"
	case ErrTooLarge:
		return "too_large"
	case ErrBusy:
		return "busy"
	}
	return fmt.Sprintf("ErrorType(%d)", int(t))
}

// Failure is an error a command reports back to the invoking user.
type Failure struct {
	Type    ErrorType
	Message string
	Data    map[string]any
}

func (f Failure) Error() string {
	return f.Message
}

func Failf(t ErrorType, format string, args ...any) Failure {
	return Failure{Type: t, Message: fmt.Sprintf(format, args...)}
}

// AsFailure returns the Failure wrapped in err, or an internal Failure with
// the given message carrying err otherwise.
func AsFailure(err error, message string) Failure {
	var f Failure
	if errors.As(err, &f) {
		return f
	}
	return Failure{Type: ErrInternal, Message: message, Data: map[string]any{"error": err}}
}
