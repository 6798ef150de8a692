package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the category of a diffchunk error
type ErrorKind int

const (
	// KindNotFound means the input path could not be read
	KindNotFound ErrorKind = iota
	// KindEmptyInput means the input held no diff sections
	KindEmptyInput
	// KindNotLoaded means a query was issued before a successful load
	KindNotLoaded
	// KindOutOfRange means a chunk number is outside [1, count]
	KindOutOfRange
	// KindInvalidConfiguration means a configuration value was rejected
	KindInvalidConfiguration
)

// Sentinels for errors.Is matching against any *Error of the same kind
var (
	ErrNotFound             = errors.New("not found")
	ErrEmptyInput           = errors.New("empty input")
	ErrNotLoaded            = errors.New("no diff loaded")
	ErrOutOfRange           = errors.New("out of range")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Error is the typed error returned by the diffchunk core
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the error's kind
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// WithContext adds a key/value pair describing the failure
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewError creates a typed error
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// IsKind checks whether err is, or wraps, an *Error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// String returns the kind name used in messages
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindEmptyInput:
		return "EMPTY_INPUT"
	case KindNotLoaded:
		return "NOT_LOADED"
	case KindOutOfRange:
		return "OUT_OF_RANGE"
	case KindInvalidConfiguration:
		return "INVALID_CONFIGURATION"
	default:
		return "UNKNOWN"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindEmptyInput:
		return ErrEmptyInput
	case KindNotLoaded:
		return ErrNotLoaded
	case KindOutOfRange:
		return ErrOutOfRange
	case KindInvalidConfiguration:
		return ErrInvalidConfiguration
	default:
		return nil
	}
}

// Convenience constructors

// NotFoundError creates a not-found error
func NotFoundError(message string, cause error) *Error {
	return NewError(KindNotFound, message, cause)
}

// EmptyInputError creates an empty-input error
func EmptyInputError(message string) *Error {
	return NewError(KindEmptyInput, message, nil)
}

// NotLoadedError creates a not-loaded error
func NotLoadedError(message string) *Error {
	return NewError(KindNotLoaded, message, nil)
}

// OutOfRangeError creates an out-of-range error for a chunk number
func OutOfRangeError(index, count int) *Error {
	msg := fmt.Sprintf("chunk %d not found, available chunks: 1-%d", index, count)
	if count == 0 {
		msg = fmt.Sprintf("chunk %d not found, the diff produced no chunks", index)
	}
	return NewError(KindOutOfRange, msg, nil).
		WithContext("index", index).
		WithContext("count", count)
}

// ConfigError creates an invalid-configuration error
func ConfigError(message string, cause error) *Error {
	return NewError(KindInvalidConfiguration, message, cause)
}
