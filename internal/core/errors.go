package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid invocation or input
	ErrCatConfig     ErrorCategory = "config"     // Missing or invalid settings
	ErrCatFacts      ErrorCategory = "facts"      // Required system fact absent or malformed
	ErrCatState      ErrorCategory = "state"      // Persisted snapshot problem
	ErrCatProbe      ErrorCategory = "probe"      // Process table inspection failure
	ErrCatOutput     ErrorCategory = "output"     // Result document could not be written
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
	Details  map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{Category: ErrCatValidation, Code: code, Message: message}
}

// ErrConfig creates a configuration error.
func ErrConfig(code, message string) *DomainError {
	return &DomainError{Category: ErrCatConfig, Code: code, Message: message}
}

// ErrFacts creates an error for a required system fact that is absent or malformed.
func ErrFacts(code, message string) *DomainError {
	return &DomainError{Category: ErrCatFacts, Code: code, Message: message}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{Category: ErrCatState, Code: code, Message: message}
}

// ErrProbe creates a process inspection error.
func ErrProbe(code, message string) *DomainError {
	return &DomainError{Category: ErrCatProbe, Code: code, Message: message}
}

// ErrOutput creates an error for a failed result emission.
func ErrOutput(message string) *DomainError {
	return &DomainError{Category: ErrCatOutput, Code: CodeEmitFailed, Message: message}
}

// ErrUnknownTest reports a test name the module does not implement.
func ErrUnknownTest(module, test string) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     CodeUnknownTest,
		Message:  fmt.Sprintf("module %s has no test %q", module, test),
		Details: map[string]interface{}{
			"module": module,
			"test":   test,
		},
	}
}

// IsFatal reports whether err must abort the invocation. Only state
// problems are absorbed; everything else ends the run without output.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return GetCategory(err) != ErrCatState
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes
const (
	CodeUnknownTest    = "UNKNOWN_TEST"
	CodeUnknownModule  = "UNKNOWN_MODULE"
	CodeNoMode         = "NO_MODE"
	CodeConflictMode   = "CONFLICTING_MODE"
	CodeInvalidConfig  = "INVALID_CONFIG"
	CodeMissingConfig  = "MISSING_CONFIG"
	CodeMissingField   = "MISSING_FIELD"
	CodeInvalidField   = "INVALID_FIELD"
	CodeProcTable      = "PROC_TABLE_UNAVAILABLE"
	CodeStateCorrupted = "STATE_CORRUPTED"
	CodeStateWrite     = "STATE_WRITE_FAILED"
	CodeEmitFailed     = "EMIT_FAILED"
)
