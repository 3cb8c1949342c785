package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"os/user"
	"strings"
)

// privilegedGroup is the OS group whose members may talk to the engine
// socket without elevation.
const privilegedGroup = "docker"

// Engine CLI command token lists, used where no client API call exists.
var (
	VersionCommand = []string{"docker", "--version"}
	InspectCommand = []string{"docker", "inspect"}
	CopyCommand    = []string{"docker", "cp"}
)

// ExecutionError reports a spawned command that wrote to its error stream.
type ExecutionError struct {
	Command []string
	Stderr  []byte
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command %q failed: %s",
		strings.Join(e.Command, " "), bytes.TrimSpace(e.Stderr))
}

// Runner executes engine CLI commands as external processes, prefixing them
// with sudo when the current user is not a member of the docker group. The
// elevation decision is resolved once at construction, not per call.
type Runner struct {
	elevate bool
}

// NewRunner probes the OS group database to decide whether commands need
// elevation. A failed user or group lookup falls back to elevating.
func NewRunner() *Runner {
	return &Runner{elevate: needsElevation()}
}

// NewRunnerWithElevation skips the group probe; used by callers that resolve
// privileges themselves.
func NewRunnerWithElevation(elevate bool) *Runner {
	return &Runner{elevate: elevate}
}

func needsElevation() bool {
	current, err := user.Current()
	if err != nil {
		return true
	}

	group, err := user.LookupGroup(privilegedGroup)
	if err != nil {
		return true
	}

	gids, err := current.GroupIds()
	if err != nil {
		return true
	}

	for _, gid := range gids {
		if gid == group.Gid {
			return false
		}
	}
	return true
}

// Run executes the base command plus extra arguments and returns the captured
// stdout bytes. Anything written to stderr fails the call with an
// ExecutionError and no partial output. A clean stderr with a non-zero exit
// still counts as success; stderr is the failure signal here, not the exit
// status.
func (r *Runner) Run(ctx context.Context, command []string, extra ...string) ([]byte, error) {
	full := make([]string, 0, len(command)+len(extra)+1)
	if r.elevate {
		full = append(full, "sudo")
	}
	full = append(full, command...)
	full = append(full, extra...)

	slog.Debug("Running command", "command", strings.Join(full, " "))

	cmd := exec.CommandContext(ctx, full[0], full[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if stderr.Len() > 0 {
		return nil, &ExecutionError{Command: full, Stderr: stderr.Bytes()}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), nil
		}
		return nil, fmt.Errorf("failed to run %s: %w", full[0], err)
	}

	return stdout.Bytes(), nil
}
