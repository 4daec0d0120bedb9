// Package errors provides structured error types for sessionpool.
//
// This package provides:
//   - Sentinel errors for the pool's failure categories
//   - Error codes that separate caller-visible failures from ones the
//     pool recovers from internally
//   - Error wrapping with context preservation
package errors

import (
	"errors"
	"fmt"
)

// Error codes, one per failure category the pool distinguishes.
const (
	CodeInternal           = 1000 // Unexpected internal failure
	CodeAcquisitionTimeout = 1001 // No live resource within the deadline
	CodeDeadResource       = 1002 // Resource failed its liveness check
	CodeCreationFailure    = 1003 // Factory could not open a resource
	CodeLeak               = 1004 // Resource held past the leak threshold
	CodeConfiguration      = 1005 // Invalid configuration
	CodeClosed             = 1006 // Operation on a closed pool
	CodeInvalidInput       = 1007 // Invalid argument
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrClosed indicates a resource is closed.
	ErrClosed = errors.New("closed")

	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration indicates a configuration error.
	ErrConfiguration = errors.New("configuration error")

	// ErrDeadResource indicates a resource failed its liveness check.
	ErrDeadResource = errors.New("resource is not alive")

	// ErrCreationFailed indicates the factory could not produce a resource.
	ErrCreationFailed = errors.New("resource creation failed")

	// ErrLeak indicates a resource was held longer than the leak threshold.
	ErrLeak = errors.New("possible resource leak")

	// ErrInternal indicates an internal error.
	ErrInternal = errors.New("internal error")
)

// Pool errors
var (
	// ErrPoolClosed is returned when operating on a closed pool.
	ErrPoolClosed = fmt.Errorf("pool: %w", ErrClosed)

	// ErrPoolConfig wraps configuration validation failures.
	ErrPoolConfig = fmt.Errorf("pool: %w", ErrConfiguration)
)

// Error is a structured error with a code and message.
type Error struct {
	// Code is the error code for categorization
	Code int `json:"code"`
	// Message describes the failure
	Message string `json:"message"`
	// Err is the underlying error
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap wraps an existing error with a code and message.
func Wrap(code int, message string, err error) *Error {
	if err != nil {
		log.WithField("code", code).WithError(err).Debug("wrapping error")
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// FromSentinel creates a structured error from a sentinel error.
// It assigns the code matching the error's category.
func FromSentinel(err error) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:    Code(err),
		Message: err.Error(),
		Err:     err,
	}
}

// Code returns the category code for err. A structured *Error anywhere in
// the chain wins; otherwise the code is derived from the sentinel it wraps.
func Code(err error) int {
	var se *Error
	if errors.As(err, &se) && se.Code != 0 {
		return se.Code
	}

	switch {
	case errors.Is(err, ErrTimeout):
		return CodeAcquisitionTimeout
	case errors.Is(err, ErrDeadResource):
		return CodeDeadResource
	case errors.Is(err, ErrCreationFailed):
		return CodeCreationFailure
	case errors.Is(err, ErrLeak):
		return CodeLeak
	case errors.Is(err, ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, ErrClosed):
		return CodeClosed
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	default:
		return CodeInternal
	}
}

// IsRecoverable reports whether the caller can reasonably retry after err.
// Acquisition timeouts clear once capacity frees up; dead resources and
// creation failures are absorbed by the pool and only reach callers when
// wrapped into one of the other categories.
func IsRecoverable(err error) bool {
	switch Code(err) {
	case CodeAcquisitionTimeout, CodeDeadResource, CodeCreationFailure:
		return true
	default:
		return false
	}
}

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsClosed returns true if the error indicates a resource is closed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsConfiguration returns true if the error indicates a bad configuration.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
