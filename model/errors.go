package model

import (
	"errors"
	"fmt"
)

// ErrInvalidDefinition matches every definition validation failure.
var ErrInvalidDefinition = errors.New("invalid definition")

var errNotObject = errors.New("expected a JSON object")

// ValidationError describes why a definition was rejected.
//
// The underlying decode error (if any) can be accessed via errors.Unwrap.
type ValidationError struct {
	View   string
	Reason string
	cause  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid definition for semantic view '%s': %s", e.View, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.cause }

// Is reports whether target is ErrInvalidDefinition.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidDefinition }

func invalid(view string, cause error, format string, args ...any) *ValidationError {
	return &ValidationError{View: view, Reason: fmt.Sprintf(format, args...), cause: cause}
}
