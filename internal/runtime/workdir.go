package runtime

import (
	"fmt"
	"log/slog"
	"os"
)

// enterDir changes the process working directory and returns a restore
// function that changes back to the previous one. Callers defer the restore
// so it runs on every exit path, including failures.
func enterDir(dir string) (func(), error) {
	prev, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	if err := os.Chdir(dir); err != nil {
		return nil, fmt.Errorf("failed to enter directory %s: %w", dir, err)
	}

	return func() {
		if err := os.Chdir(prev); err != nil {
			slog.Warn("Failed to restore working directory", "dir", prev, "error", err)
		}
	}, nil
}
