package workflow

import (
	"errors"
	"fmt"

	"landing_copy_studio/generator"
)

var (
	ErrInvalidTransition = errors.New("action not allowed in the current phase")
	ErrBusy              = errors.New("a generation call is already in flight")
	ErrVariationIndex    = errors.New("variation index out of range")
	ErrProtectedStatus   = errors.New("generating and approved statuses are set by the workflow only")
	ErrUnknownSection    = errors.New("section not found")
	ErrStaleCall         = errors.New("call result discarded: workflow moved on")
)

// ValidationError reports user input problems per field. It blocks only the
// transition that was attempted.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", generator.JoinFieldErrors(e.Fields))
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func transitionErr(action string, phase Phase) error {
	return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, action, phase)
}
