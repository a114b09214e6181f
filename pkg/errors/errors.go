// Package errors provides structured error types for boxd.
// Errors include context, causes, and actionable suggestions.
package errors

import (
	"fmt"
	"strings"
)

// Category classifies errors for consistent handling and display.
type Category string

const (
	CategoryValidation  Category = "validation"  // Experiment/input validation errors
	CategoryTrial       Category = "trial"       // Trial construction/runtime errors
	CategoryHardware    Category = "hardware"    // GPIO/I2C/display errors
	CategoryPersistence Category = "persistence" // Data recording/export errors
	CategoryTransport   Category = "transport"   // WebSocket/connectivity errors
	CategoryConfig      Category = "config"      // Configuration loading/parsing errors
	CategoryInternal    Category = "internal"    // Internal/unexpected errors
)

// DeviceError is a structured error with context and suggestions.
// It implements the error interface and supports error wrapping.
type DeviceError struct {
	// Code is a unique identifier for this error type (e.g., "TRIAL_TYPE_UNKNOWN")
	Code string

	// Category classifies this error for consistent handling
	Category Category

	// Message is the primary error message describing what went wrong
	Message string

	// Context provides additional key-value details about the error
	Context map[string]string

	// Cause is the underlying error that triggered this error (for wrapping)
	Cause error

	// Suggestions are actionable remediation steps for the operator
	Suggestions []string
}

// Error implements the error interface.
// Returns a simple string representation for compatibility with standard error handling.
func (e *DeviceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
// This enables errors.Is() and errors.As() to work with DeviceError.
func (e *DeviceError) Unwrap() error {
	return e.Cause
}

// Is reports whether e matches target for errors.Is() checks.
// Two DeviceErrors match if they have the same Code.
func (e *DeviceError) Is(target error) bool {
	if t, ok := target.(*DeviceError); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new DeviceError with the given code, category, and message.
func New(code string, category Category, message string) *DeviceError {
	return &DeviceError{
		Code:     code,
		Category: category,
		Message:  message,
		Context:  make(map[string]string),
	}
}

// WithContext adds a context key-value pair and returns the error for chaining.
func (e *DeviceError) WithContext(key, value string) *DeviceError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithContextMap adds multiple context key-value pairs.
func (e *DeviceError) WithContextMap(ctx map[string]string) *DeviceError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	for k, v := range ctx {
		e.Context[k] = v
	}
	return e
}

// WithCause wraps an underlying error and returns the error for chaining.
func (e *DeviceError) WithCause(cause error) *DeviceError {
	e.Cause = cause
	return e
}

// WithSuggestion adds a remediation suggestion and returns the error for chaining.
func (e *DeviceError) WithSuggestion(suggestion string) *DeviceError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple remediation suggestions.
func (e *DeviceError) WithSuggestions(suggestions ...string) *DeviceError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// HasContext returns true if the error has context information.
func (e *DeviceError) HasContext() bool {
	return len(e.Context) > 0
}

// HasSuggestions returns true if the error has suggestions.
func (e *DeviceError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// ContextString returns a formatted string of all context entries.
func (e *DeviceError) ContextString() string {
	if len(e.Context) == 0 {
		return ""
	}
	var parts []string
	for k, v := range e.Context {
		parts = append(parts, fmt.Sprintf("%s=%q", k, v))
	}
	return strings.Join(parts, ", ")
}

// Wrap wraps an existing error with a DeviceError.
// This is a convenience function for common error wrapping patterns.
func Wrap(err error, code string, category Category, message string) *DeviceError {
	return New(code, category, message).WithCause(err)
}

// AsDeviceError attempts to convert an error to a DeviceError.
// Returns the DeviceError and true if successful, nil and false otherwise.
func AsDeviceError(err error) (*DeviceError, bool) {
	if err == nil {
		return nil, false
	}
	if de, ok := err.(*DeviceError); ok {
		return de, true
	}
	return nil, false
}

// IsCategory checks if an error is a DeviceError with the given category.
func IsCategory(err error, category Category) bool {
	if de, ok := AsDeviceError(err); ok {
		return de.Category == category
	}
	return false
}

// IsCode checks if an error is a DeviceError with the given code.
func IsCode(err error, code string) bool {
	if de, ok := AsDeviceError(err); ok {
		return de.Code == code
	}
	return false
}
