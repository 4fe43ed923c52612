package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Reference ID errors (REF-001 to REF-099)
	ErrCodeMalformedReferenceID ErrorCode = "REF-001"

	// API errors (API-001 to API-099)
	ErrCodeAPIRequest  ErrorCode = "API-001"
	ErrCodeAPIResponse ErrorCode = "API-002"
	ErrCodeNotFound    ErrorCode = "API-003"
	ErrCodeAuth        ErrorCode = "API-004"
	ErrCodeConnection  ErrorCode = "API-005"

	// Validation errors (VALIDATION-001 to VALIDATION-099)
	ErrCodeMissingField  ErrorCode = "VALIDATION-001"
	ErrCodeInvalidField  ErrorCode = "VALIDATION-002"
	ErrCodeDuplicateName ErrorCode = "VALIDATION-003"
	ErrCodeInvalidTime   ErrorCode = "VALIDATION-004"

	// Operation errors (OP-001 to OP-099)
	ErrCodeUnsupportedOperation ErrorCode = "OP-001"
	ErrCodePartialApply         ErrorCode = "OP-002"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigNotFound ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound  ErrorCode = "IO-001"
	ErrCodeFileUnmarshal ErrorCode = "IO-002"
)

// ESError represents an enhanced error with code, suggestions, and a cause
type ESError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *ESError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *ESError) Unwrap() error {
	return e.Cause
}

// New creates a new ESError
func New(code ErrorCode, message string) *ESError {
	return &ESError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new ESError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *ESError {
	return &ESError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *ESError) WithSuggestion(suggestion string) *ESError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *ESError) WithSuggestions(suggestions ...string) *ESError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// CodeOf returns the code of err if it is (or wraps) an ESError
func CodeOf(err error) (ErrorCode, bool) {
	var esErr *ESError
	if stderrors.As(err, &esErr) {
		return esErr.Code, true
	}
	return "", false
}

func hasCode(err error, code ErrorCode) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}

// IsMalformedReferenceID reports whether err is a reference ID decomposition failure
func IsMalformedReferenceID(err error) bool {
	return hasCode(err, ErrCodeMalformedReferenceID)
}

// IsNotFound reports whether err indicates a missing remote entity
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool {
	code, ok := CodeOf(err)
	return ok && strings.HasPrefix(string(code), "VALIDATION-")
}

// IsUnsupportedOperation reports whether err indicates an operation the
// entity type does not support
func IsUnsupportedOperation(err error) bool {
	return hasCode(err, ErrCodeUnsupportedOperation)
}

// Common error constructors for frequently used errors

// NewMalformedReferenceIDError creates a reference ID decomposition error
func NewMalformedReferenceIDError(refID string) *ESError {
	return New(ErrCodeMalformedReferenceID, fmt.Sprintf("malformed reference ID: %q", refID)).
		WithSuggestion("Expected format: <uuid>@@notable@@time<epoch_seconds>").
		WithSuggestion("Copy the ref_id exactly as returned by 'esctl finding list'")
}

// NewNotFoundError creates an entity-not-found error
func NewNotFoundError(entityType, identifier string) *ESError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found: %s", entityType, identifier)).
		WithSuggestion(fmt.Sprintf("Run 'esctl %s list' to see available entries", entityType)).
		WithSuggestion("Check that the identifier is correct and the entity has not been deleted")
}

// NewMissingFieldError creates a validation error for missing required fields
func NewMissingFieldError(operation string, fields ...string) *ESError {
	return New(ErrCodeMissingField,
		fmt.Sprintf("missing required parameters for %s: %s", operation, strings.Join(fields, ", "))).
		WithSuggestion("Provide the missing fields and retry")
}

// NewInvalidFieldError creates a validation error for a field with an
// unacceptable value
func NewInvalidFieldError(field, value, constraint string) *ESError {
	return New(ErrCodeInvalidField,
		fmt.Sprintf("invalid value %q for %s: %s", value, field, constraint))
}

// NewDuplicateNameError creates a validation error for duplicate node names
func NewDuplicateNameError(kind, name, parent string) *ESError {
	msg := fmt.Sprintf("duplicate %s name %q", kind, name)
	if parent != "" {
		msg += fmt.Sprintf(" in %s", parent)
	}
	return New(ErrCodeDuplicateName, msg).
		WithSuggestion("Names must be unique within their parent so entries can be matched reliably")
}

// NewUnsupportedOperationError creates an error for operations the entity
// type does not support
func NewUnsupportedOperationError(operation, entityType string) *ESError {
	return New(ErrCodeUnsupportedOperation,
		fmt.Sprintf("operation %q is not supported for %s", operation, entityType))
}

// NewInvalidTimeError creates a validation error for unparseable time filters
func NewInvalidTimeError(value string) *ESError {
	return New(ErrCodeInvalidTime, fmt.Sprintf("invalid time filter value: %q", value)).
		WithSuggestion("Use a relative offset (-30m, -24h, -7d, -1w), epoch seconds, ISO 8601, or 'now'")
}

// NewAuthError creates an authentication failure error
func NewAuthError(cause error) *ESError {
	return Wrap(ErrCodeAuth, "authentication with the Splunk server failed", cause).
		WithSuggestion("Set ESCTL_TOKEN or the token field in the config file").
		WithSuggestion("Check that the token has not expired")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *ESError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Run 'esctl config show' to inspect the effective configuration")
}
