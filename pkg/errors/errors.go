package errors

import (
	"errors"
	"fmt"
)

// Sentinels for domain errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrUnavailable     = errors.New("service unavailable")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrCallFailure     = errors.New("call failed")
	ErrCallTimeout     = errors.New("call timed out")
)

// CallKind classifies why a single call did not produce a value.
type CallKind string

const (
	CallKindFailure CallKind = "failure"
	CallKindTimeout CallKind = "timeout"
)

// CallError describes the failure of one call within an aggregation request.
type CallError struct {
	Kind     CallKind
	CallerID string
	Index    int
	Err      error
}

func (e *CallError) Error() string {
	caller := e.CallerID
	if caller == "" {
		caller = "unknown"
	}
	if e.Err == nil {
		return fmt.Sprintf("call %d (%s): %s", e.Index, caller, e.sentinel())
	}
	return fmt.Sprintf("call %d (%s): %s: %v", e.Index, caller, e.sentinel(), e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *CallError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

func (e *CallError) sentinel() error {
	if e.Kind == CallKindTimeout {
		return ErrCallTimeout
	}
	return ErrCallFailure
}

// NewCallError builds a CallError of the given kind.
func NewCallError(kind CallKind, callerID string, index int, cause error) *CallError {
	return &CallError{Kind: kind, CallerID: callerID, Index: index, Err: cause}
}

// AsCallError extracts a CallError from err.
func AsCallError(err error) (*CallError, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Is reports whether err is one of the sentinels.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Wrap adds context to an error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Join(errors.New(message), err)
}
