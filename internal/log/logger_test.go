package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"esctl/internal/errors"
)

func newBufferLogger(level Level, format Format) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := New(Config{
		Level:  level,
		Format: format,
		Output: NewOutput(buf),
	})
	return logger, buf
}

func TestLoggerLevels(t *testing.T) {
	logger, buf := newBufferLogger(LevelWarn, FormatText)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below WARN should be suppressed, got %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("WARN and ERROR should be emitted, got %q", out)
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatJSON)

	logger.Info("sync complete", "changed", true, "ops", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "sync complete" {
		t.Errorf("msg = %v, want 'sync complete'", entry["msg"])
	}
	if entry["changed"] != true {
		t.Errorf("changed = %v, want true", entry["changed"])
	}
}

func TestWithError(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatJSON)

	err := errors.NewNotFoundError("finding", "abc-123")
	logger.WithError(err).Error("lookup failed")

	var entry map[string]any
	if jsonErr := json.Unmarshal(buf.Bytes(), &entry); jsonErr != nil {
		t.Fatalf("output is not valid JSON: %v", jsonErr)
	}
	if entry["error_code"] != string(errors.ErrCodeNotFound) {
		t.Errorf("error_code = %v, want %s", entry["error_code"], errors.ErrCodeNotFound)
	}
}

func TestWithErrorPlain(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatText)

	logger.WithError(context.DeadlineExceeded).Error("timed out")

	if !strings.Contains(buf.String(), "deadline exceeded") {
		t.Errorf("plain errors should be logged under 'error', got %q", buf.String())
	}
}

func TestLogError(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatJSON)

	logger.LogError(errors.NewUnsupportedOperationError("delete", "investigation type"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["error_code"] != string(errors.ErrCodeUnsupportedOperation) {
		t.Errorf("error_code = %v", entry["error_code"])
	}
}

func TestParseLevelAndFormat(t *testing.T) {
	if ParseLevel("debug") != LevelDebug {
		t.Error("ParseLevel(debug)")
	}
	if ParseLevel("nonsense") != LevelInfo {
		t.Error("ParseLevel should default to info")
	}
	if ParseFormat("text") != FormatText {
		t.Error("ParseFormat(text)")
	}
	if ParseFormat("anything") != FormatJSON {
		t.Error("ParseFormat should default to json")
	}
}

func TestDefaultLoggerSingleton(t *testing.T) {
	custom, _ := newBufferLogger(LevelDebug, FormatText)
	SetDefaultLogger(custom)
	t.Cleanup(func() { SetDefaultLogger(nil) })

	if DefaultLogger() != custom {
		t.Error("DefaultLogger should return the configured logger")
	}
}
