package exitcode

import (
	"os"
	"strings"

	"esctl/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// ValidationFailed indicates the requested change failed validation
	ValidationFailed = 3

	// NotFound indicates a remote entity was absent
	NotFound = 4

	// Unsupported indicates the entity type does not support the operation
	Unsupported = 5

	// AuthError indicates an authentication or authorization failure
	AuthError = 6

	// NetworkError indicates a network connectivity issue
	NetworkError = 7

	// Interrupted indicates execution was cancelled by the user
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	// Coded errors carry their own classification
	switch {
	case errors.IsNotFound(err):
		return NotFound
	case errors.IsValidation(err) || errors.IsMalformedReferenceID(err):
		return ValidationFailed
	case errors.IsUnsupportedOperation(err):
		return Unsupported
	}

	if code, ok := errors.CodeOf(err); ok {
		switch code {
		case errors.ErrCodeAuth:
			return AuthError
		case errors.ErrCodeConnection:
			return NetworkError
		}
	}

	// Fall back to message heuristics for errors from third-party code
	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "unauthorized") || strings.Contains(errMsg, "authentication") {
		return AuthError
	}

	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no such host") ||
		strings.Contains(errMsg, "timeout") {
		return NetworkError
	}

	if strings.Contains(errMsg, "usage:") || strings.Contains(errMsg, "unknown flag") {
		return UsageError
	}

	return GeneralError
}
