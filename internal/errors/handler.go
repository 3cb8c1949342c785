package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"layerlens/internal/ui"
)

type ErrorHandler struct {
	logger  *slog.Logger
	console *ui.Console
}

func NewErrorHandler() (*ErrorHandler, error) {
	logFile, err := createLogFile()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	return &ErrorHandler{
		logger:  logger,
		console: ui.NewConsole(),
	}, nil
}

// logDir returns the OS-standard log directory, honoring the
// LAYERLENS_LOG_DIR override.
func logDir() (string, error) {
	if custom := os.Getenv("LAYERLENS_LOG_DIR"); custom != "" {
		return custom, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, "Library", "Logs", "layerlens"), nil
	case "windows":
		appDataDir := os.Getenv("APPDATA")
		if appDataDir == "" {
			appDataDir = filepath.Join(homeDir, "AppData", "Roaming")
		}
		return filepath.Join(appDataDir, "layerlens", "logs"), nil
	default:
		// XDG Base Directory layout on Linux and the BSDs
		return filepath.Join(homeDir, ".local", "share", "layerlens", "logs"), nil
	}
}

// rotateLogFile shifts layerlens.log.N files up one slot and moves the
// current log to .1, keeping at most maxFiles generations.
func rotateLogFile(logPath string) error {
	const maxFiles = 5

	for i := maxFiles - 1; i > 0; i-- {
		oldPath := fmt.Sprintf("%s.%d", logPath, i)
		if _, err := os.Stat(oldPath); err != nil {
			continue
		}
		if i == maxFiles-1 {
			if err := os.Remove(oldPath); err != nil {
				slog.Warn("Failed to remove old log file", "path", oldPath, "error", err)
			}
			continue
		}
		newPath := fmt.Sprintf("%s.%d", logPath, i+1)
		if err := os.Rename(oldPath, newPath); err != nil {
			slog.Warn("Failed to rotate log file", "old", oldPath, "new", newPath, "error", err)
		}
	}

	if _, err := os.Stat(logPath); err == nil {
		return os.Rename(logPath, logPath+".1")
	}

	return nil
}

func checkLogRotation(logPath string) error {
	const maxSizeBytes = 10 * 1024 * 1024 // 10MB

	info, err := os.Stat(logPath)
	if err != nil {
		// No file yet, nothing to rotate
		return nil
	}

	if info.Size() >= maxSizeBytes {
		return rotateLogFile(logPath)
	}

	return nil
}

func createLogFile() (*os.File, error) {
	dir, err := logDir()
	if err == nil {
		err = os.MkdirAll(dir, 0750)
	}
	if err != nil {
		// Fall back to the current directory when the standard location is
		// unusable.
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			return nil, fmt.Errorf("cannot determine log directory: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Warning: cannot access log directory (%v), logging to current directory\n", err)
		dir = cwd
	}

	logPath := filepath.Join(dir, "layerlens.log")

	if err := checkLogRotation(logPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to rotate log file: %v\n", err)
	}

	return os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

func (h *ErrorHandler) Handle(err error) {
	if err == nil {
		return
	}

	var lensErr *LensError
	if errors.As(err, &lensErr) {
		h.handleLensError(lensErr)
	} else {
		h.handleGenericError(err)
	}
}

func (h *ErrorHandler) handleLensError(err *LensError) {
	h.logStructuredError(err)

	message := h.console.FormatErrorMessage(err.Context, err.Cause, err.Suggestion)
	h.console.PrintError(message)
}

func (h *ErrorHandler) handleGenericError(err error) {
	h.logger.Error("Unhandled error occurred",
		"error", err.Error(),
		"type", "generic",
	)

	h.console.PrintError(err.Error())
}

func (h *ErrorHandler) logStructuredError(err *LensError) {
	logAttrs := []slog.Attr{
		slog.String("error", err.OriginalErr.Error()),
		slog.String("type", getErrorTypeName(err.Type)),
		slog.String("context", err.Context),
	}

	if err.Cause != "" {
		logAttrs = append(logAttrs, slog.String("cause", err.Cause))
	}

	if err.Suggestion != "" {
		logAttrs = append(logAttrs, slog.String("suggestion", err.Suggestion))
	}

	h.logger.LogAttrs(context.TODO(), slog.LevelError, "layerlens error occurred", logAttrs...)
}

func getErrorTypeName(errType error) string {
	switch errType {
	case ErrManifestNotFound:
		return "manifest_not_found"
	case ErrManifestParseFailed:
		return "manifest_parse_failed"
	case ErrExecutionFailed:
		return "execution_failed"
	case ErrEngineFailed:
		return "engine_failed"
	case ErrExtractFailed:
		return "extract_failed"
	case ErrSourceFailed:
		return "source_failed"
	case ErrConfigInvalid:
		return "config_invalid"
	case ErrFileSystemFailed:
		return "filesystem_failed"
	default:
		return "unknown"
	}
}
