package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrCancelled indicates a request was cancelled by the caller
	ErrCancelled = errors.New("request cancelled")
)

// Registry and dispatch errors

var (
	// ErrNoAgentsAvailable indicates no idle, capable agent could be found
	ErrNoAgentsAvailable = errors.New("no agents available")

	// ErrDuplicateAgent indicates an agent id is already registered
	ErrDuplicateAgent = errors.New("agent already registered")

	// ErrUnknownAgent indicates an agent id is not present in the registry
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrAgentOffline indicates an agent is offline and cannot take tasks
	ErrAgentOffline = errors.New("agent offline")

	// ErrAgentBusy indicates an agent is at its concurrency limit
	ErrAgentBusy = errors.New("agent at capacity")
)

// Workflow errors

var (
	// ErrStageFailed indicates a single workflow stage produced an error result
	ErrStageFailed = errors.New("stage failed")

	// ErrTerminalStageFailed indicates the terminal stage failed, aborting the request
	ErrTerminalStageFailed = errors.New("terminal stage failed")

	// ErrRecursionLimit indicates a workflow exceeded its stage execution ceiling
	ErrRecursionLimit = errors.New("recursion limit exceeded")

	// ErrPlanNotBuilt indicates the workflow plan was not built before execution
	ErrPlanNotBuilt = errors.New("workflow plan not built")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// MultiError wraps multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors (%d): %v", len(m.Errors), m.Errors[0])
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
