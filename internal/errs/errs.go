// Package errs classifies the errors that must not be turned into
// diagnostics: configuration errors, which stop the service from starting,
// and invariant errors, which point at a bug in a tokenizer or parser
// definition.
package errs

import (
	"errors"
	"fmt"
)

// Class is the handling class of an error.
type Class int

const (
	// ClassConfig covers malformed or unreadable configuration.
	ClassConfig Class = iota + 1
	// ClassInvariant covers broken internal state.
	ClassInvariant
)

func (c Class) String() string {
	switch c {
	case ClassConfig:
		return "config"
	case ClassInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Standard error variables.
var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrConfigNotFound = errors.New("configuration not found")
	ErrUnknownRule    = errors.New("unknown rule")
	ErrUnknownPreset  = errors.New("unknown preset")
	ErrUnknownParser  = errors.New("unknown parser")
	ErrInvariant      = errors.New("internal invariant violated")
)

// Error wraps an error with its class and where it happened.
type Error struct {
	Class     Class
	Err       error
	Message   string
	Component string
	Operation string
}

func (e *Error) Error() string {
	prefix := e.Component
	if e.Operation != "" {
		prefix += "." + e.Operation
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	default:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(class Class, err error, component, operation, message string) *Error {
	return &Error{Class: class, Err: err, Message: message, Component: component, Operation: operation}
}

// Config returns a configuration error. err is usually one of the sentinels
// of this package, or the I/O or decoding error that caused it.
func Config(err error, component, operation, format string, args ...any) error {
	if err == nil {
		err = ErrInvalidConfig
	}
	return newError(ClassConfig, err, component, operation, fmt.Sprintf(format, args...))
}

// Invariant returns an invariant error.
func Invariant(component, operation, format string, args ...any) error {
	return newError(ClassInvariant, ErrInvariant, component, operation, fmt.Sprintf(format, args...))
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	return classOf(err) == ClassConfig ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrConfigNotFound) ||
		errors.Is(err, ErrUnknownRule) ||
		errors.Is(err, ErrUnknownPreset) ||
		errors.Is(err, ErrUnknownParser)
}

// IsInvariant reports whether err is an invariant error.
func IsInvariant(err error) bool {
	return classOf(err) == ClassInvariant || errors.Is(err, ErrInvariant)
}

func classOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return 0
}
