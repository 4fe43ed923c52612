package exitcode

import (
	"fmt"
	"testing"

	"esctl/internal/errors"
)

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, Success},
		{"not found", errors.NewNotFoundError("finding", "abc"), NotFound},
		{"wrapped not found", fmt.Errorf("get: %w", errors.NewNotFoundError("note", "n1")), NotFound},
		{"validation", errors.NewMissingFieldError("create finding", "title"), ValidationFailed},
		{"malformed ref id", errors.NewMalformedReferenceIDError("nope"), ValidationFailed},
		{"duplicate name", errors.NewDuplicateNameError("phase", "Triage", ""), ValidationFailed},
		{"unsupported", errors.NewUnsupportedOperationError("delete", "investigation type"), Unsupported},
		{"auth", errors.NewAuthError(nil), AuthError},
		{"connection code", errors.Wrap(errors.ErrCodeConnection, "send request", nil), NetworkError},
		{"plain auth text", fmt.Errorf("server said: unauthorized"), AuthError},
		{"plain network text", fmt.Errorf("dial tcp: connection refused"), NetworkError},
		{"plain error", fmt.Errorf("something broke"), GeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.want {
				t.Errorf("DetermineExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
