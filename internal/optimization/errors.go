package optimization

import (
	"errors"
	"fmt"
)

// ErrLineSearchFailed is returned by Backtrack when no step in the
// backtracking sequence satisfies the sufficient-decrease condition within
// the configured number of shrinks.
var ErrLineSearchFailed = errors.New("line search: no acceptable step within backtracking limit")

// Error is an engine error carrying the operation and component in which it
// occurred.
type Error struct {
	// Message describes what went wrong.
	Message string
	// Op is the operation that failed, e.g. "Engine.Minimize".
	Op string
	// Component is the part of the engine that reported the error.
	Component string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := e.Message
	switch {
	case e.Component != "" && e.Op != "":
		msg = e.Component + ": " + e.Op + ": " + msg
	case e.Component != "":
		msg = e.Component + ": " + msg
	case e.Op != "":
		msg = e.Op + ": " + msg
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation sets the failing operation.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent sets the reporting component.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates an Error with the given message.
func NewError(message string) *Error {
	return &Error{Message: message}
}

// NewErrorf creates an Error with a formatted message.
func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps err with a message. It returns nil when err is nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Message: message, Err: err}
}

// IsOptimizationError reports whether err's chain contains an *Error and
// returns it.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ErrInvalidArgument is returned when a caller supplies a value outside its
// allowed range. Message is optional.
type ErrInvalidArgument struct {
	Name    string      // Name of the offending argument, e.g. "WolfeConst"
	Value   interface{} // The value that was supplied
	Message string      // Why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %v is invalid for %q", err.Value, err.Name)
	}
	return fmt.Sprintf("value %v is invalid for %q; %s", err.Value, err.Name, err.Message)
}
