package errors

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestHandler(t *testing.T) *ErrorHandler {
	t.Helper()

	t.Setenv("LAYERLENS_LOG_DIR", t.TempDir())

	handler, err := NewErrorHandler()
	if err != nil {
		t.Fatalf("Failed to create error handler: %s", err)
	}
	return handler
}

func TestNewErrorHandler_CreatesLogFile(t *testing.T) {
	logDir := t.TempDir()
	t.Setenv("LAYERLENS_LOG_DIR", logDir)

	_, err := NewErrorHandler()
	if err != nil {
		t.Fatalf("Failed to create error handler: %s", err)
	}

	if _, err := os.Stat(filepath.Join(logDir, "layerlens.log")); err != nil {
		t.Errorf("Expected log file to be created: %s", err)
	}
}

func TestHandle_NilError(t *testing.T) {
	handler := newTestHandler(t)

	// Must not panic or log anything
	handler.Handle(nil)
}

func TestHandle_StructuredError(t *testing.T) {
	logDir := t.TempDir()
	t.Setenv("LAYERLENS_LOG_DIR", logDir)

	handler, err := NewErrorHandler()
	if err != nil {
		t.Fatalf("Failed to create error handler: %s", err)
	}

	lensErr := NewExtractError(
		"Extraction of alpine:3.20 failed",
		"The image archive did not produce a filesystem tree",
		"Re-run with --keep-archive",
		errors.New("unpack directory missing"),
	)
	handler.Handle(lensErr)

	content, err := os.ReadFile(filepath.Join(logDir, "layerlens.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %s", err)
	}

	logged := string(content)
	if !strings.Contains(logged, "extract_failed") {
		t.Errorf("Expected log to contain error type, got: %s", logged)
	}
	if !strings.Contains(logged, "Extraction of alpine:3.20 failed") {
		t.Errorf("Expected log to contain context, got: %s", logged)
	}
	if !strings.Contains(logged, "unpack directory missing") {
		t.Errorf("Expected log to contain original error, got: %s", logged)
	}
}

func TestHandle_GenericError(t *testing.T) {
	logDir := t.TempDir()
	t.Setenv("LAYERLENS_LOG_DIR", logDir)

	handler, err := NewErrorHandler()
	if err != nil {
		t.Fatalf("Failed to create error handler: %s", err)
	}

	handler.Handle(errors.New("something unexpected broke"))

	content, err := os.ReadFile(filepath.Join(logDir, "layerlens.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %s", err)
	}

	logged := string(content)
	if !strings.Contains(logged, "something unexpected broke") {
		t.Errorf("Expected log to contain error message, got: %s", logged)
	}
	if !strings.Contains(logged, `"type":"generic"`) {
		t.Errorf("Expected generic error type marker, got: %s", logged)
	}
}

func TestGetDefaultHandler_Singleton(t *testing.T) {
	t.Setenv("LAYERLENS_LOG_DIR", t.TempDir())
	resetDefaultHandler()
	t.Cleanup(resetDefaultHandler)

	first, err := GetDefaultHandler()
	if err != nil {
		t.Fatalf("Failed to get default handler: %s", err)
	}

	second, err := GetDefaultHandler()
	if err != nil {
		t.Fatalf("Failed to get default handler: %s", err)
	}

	if first != second {
		t.Error("Expected the same handler instance on repeated calls")
	}
}

func TestLogDir_HonorsOverride(t *testing.T) {
	custom := t.TempDir()
	t.Setenv("LAYERLENS_LOG_DIR", custom)

	dir, err := logDir()
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}
	if dir != custom {
		t.Errorf("Expected log dir %s, got %s", custom, dir)
	}
}

func TestGetErrorTypeName(t *testing.T) {
	tests := []struct {
		errType  error
		expected string
	}{
		{ErrManifestNotFound, "manifest_not_found"},
		{ErrManifestParseFailed, "manifest_parse_failed"},
		{ErrExecutionFailed, "execution_failed"},
		{ErrEngineFailed, "engine_failed"},
		{ErrExtractFailed, "extract_failed"},
		{ErrSourceFailed, "source_failed"},
		{ErrConfigInvalid, "config_invalid"},
		{ErrFileSystemFailed, "filesystem_failed"},
		{errors.New("other"), "unknown"},
	}

	for _, tt := range tests {
		if got := getErrorTypeName(tt.errType); got != tt.expected {
			t.Errorf("getErrorTypeName(%v) = %q, expected %q", tt.errType, got, tt.expected)
		}
	}
}

func TestLensError_ErrorAndUnwrap(t *testing.T) {
	original := errors.New("root cause")
	lensErr := NewEngineError("Engine call failed", "daemon unreachable", "start docker", original)

	if lensErr.Error() != "root cause" {
		t.Errorf("Expected Error() to return the original message, got %q", lensErr.Error())
	}
	if !errors.Is(lensErr, original) {
		t.Error("Expected errors.Is to match the original error through Unwrap")
	}
}
