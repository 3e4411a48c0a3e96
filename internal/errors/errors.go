// Package errors provides error handling utilities for the pacer library.
// It includes error wrapping, classification, and context management.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the category of an error.
type ErrorType string

const (
	// Stack capture configuration.
	stackSkipFrames = 2  // Number of stack frames to skip when capturing
	maxStackDepth   = 10 // Maximum stack depth to capture

	// Error types for classification.
	TypeValidation ErrorType = "VALIDATION"
	TypeIO         ErrorType = "IO"
	TypeInternal   ErrorType = "INTERNAL"
)

// Severity levels.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// PacerError is the base error type for all pacer errors.
type PacerError struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Stack     []string               `json:"stack,omitempty"`
	Severity  Severity               `json:"severity"`
	Component string                 `json:"component,omitempty"`
	Operation string                 `json:"operation,omitempty"`
}

// Error implements the error interface.
func (e *PacerError) Error() string {
	var b strings.Builder

	if e.Component != "" {
		b.WriteString("[")
		b.WriteString(e.Component)
		b.WriteString("] ")
	}

	if e.Operation != "" {
		b.WriteString(e.Operation)
		b.WriteString(": ")
	}

	b.WriteString(string(e.Type))
	b.WriteString(": ")
	b.WriteString(e.Message)

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

// Unwrap returns the underlying cause of the error.
func (e *PacerError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for errors.Is.
func (e *PacerError) Is(target error) bool {
	t, ok := target.(*PacerError)
	if !ok {
		return false
	}

	return e.Type == t.Type
}

// WithContext adds context information to the error.
func (e *PacerError) WithContext(key string, value interface{}) *PacerError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}

	e.Context[key] = value

	return e
}

// WithOperation sets the operation that caused the error.
func (e *PacerError) WithOperation(operation string) *PacerError {
	e.Operation = operation

	return e
}

// WithComponent sets the component that generated the error.
func (e *PacerError) WithComponent(component string) *PacerError {
	e.Component = component

	return e
}

// New creates a new PacerError with stack trace.
func New(errType ErrorType, message string) *PacerError {
	return &PacerError{
		Type:     errType,
		Message:  message,
		Stack:    captureStack(stackSkipFrames),
		Severity: getSeverityForType(errType),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, message string) *PacerError {
	if err == nil {
		return nil
	}

	// If it's already a PacerError, preserve its properties
	var pe *PacerError
	if errors.As(err, &pe) {
		return &PacerError{
			Type:      pe.Type,
			Message:   message,
			Cause:     pe,
			Context:   pe.Context,
			Stack:     captureStack(stackSkipFrames),
			Severity:  pe.Severity,
			Component: pe.Component,
			Operation: pe.Operation,
		}
	}

	// Otherwise, create a new internal error
	return &PacerError{
		Type:     TypeInternal,
		Message:  message,
		Cause:    err,
		Stack:    captureStack(stackSkipFrames),
		Severity: SeverityMedium,
	}
}

// WrapWithType wraps an error with a specific type.
func WrapWithType(err error, errType ErrorType, message string) *PacerError {
	if err == nil {
		return nil
	}

	return &PacerError{
		Type:     errType,
		Message:  message,
		Cause:    err,
		Stack:    captureStack(stackSkipFrames),
		Severity: getSeverityForType(errType),
	}
}

// Wrapf wraps an error with formatted message.
func Wrapf(err error, format string, args ...interface{}) *PacerError {
	if err == nil {
		return nil
	}

	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsType checks if an error is of a specific type.
func IsType(err error, errType ErrorType) bool {
	var pe *PacerError
	if errors.As(err, &pe) {
		return pe.Type == errType
	}

	return false
}

// Helper functions.

func captureStack(skip int) []string {
	var stack []string

	for i := skip; i < skip+maxStackDepth; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn != nil {
			stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		}
	}

	return stack
}

func getSeverityForType(errType ErrorType) Severity {
	switch errType {
	case TypeInternal:
		return SeverityHigh
	case TypeIO:
		return SeverityMedium
	case TypeValidation:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// Convenience functions for creating common errors

func NewValidationError(message string) *PacerError {
	return New(TypeValidation, message)
}

func NewIOError(message string, cause error) *PacerError {
	if cause != nil {
		return WrapWithType(cause, TypeIO, message)
	}

	return New(TypeIO, message)
}
