package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"layerlens/internal/exec"
	"layerlens/internal/extract"
	"layerlens/internal/parser"
	"layerlens/internal/ui"
	pkgruntime "layerlens/pkg/runtime"
)

const (
	// Color codes for console output
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
)

// Options control a staging run.
type Options struct {
	IsDryRun      bool
	RetainState   bool
	KeepContainer bool
}

// Run orchestrates the complete staging workflow using a stateful execution
// engine with resume capability: acquire the image, start the reserved
// container, extract the image filesystem.
func Run(manifestPath string, opts Options) error {
	slog.Info("Starting layerlens stage workflow", "manifestPath", manifestPath, "dryRun", opts.IsDryRun)

	console := ui.NewConsole()

	// Load existing state or create new state
	state, err := loadState()
	if err != nil {
		return fmt.Errorf("failed to load execution state: %w", err)
	}

	var isResume bool
	if state == nil {
		// Fresh start - create new state
		runID := uuid.New().String()
		state = newState(manifestPath, runID)
		slog.Info("Starting new staging run", "runId", runID, "manifestPath", manifestPath)
	} else {
		// Resume existing run
		isResume = true
		nextStage := state.getNextStage()
		console.PrintStage(ColorYellow, fmt.Sprintf("📋 State file found. Resuming from stage: %s", nextStage))
		slog.Info("Resuming staging run", "runId", state.RunID, "nextStage", nextStage, "lastStage", state.LastSuccessfulStage)
		fmt.Println()
	}

	if opts.IsDryRun {
		console.PrintStage(ColorYellow, "🔍 DRY RUN MODE - No actual changes will be made")
		if isResume {
			console.PrintStage(ColorYellow, fmt.Sprintf("🔍 DRY RUN: Simulating resume from stage: %s", state.getNextStage()))
		}
		fmt.Println()
	}

	// Parse manifest (needed for all stages)
	m, err := parser.Parse(manifestPath)
	if err != nil {
		return fmt.Errorf("manifest parsing failed: %w", err)
	}
	slog.Info("Manifest parsed successfully", "name", m.Metadata.Name, "image", m.Spec.Image.Tag)

	// The engine client is only needed for a real run; dry-run stages
	// short-circuit before touching it.
	var rt pkgruntime.ContainerRuntime
	if !opts.IsDryRun {
		rt, err = NewRuntimeFactory().GetRuntime("docker")
		if err != nil {
			return err
		}
		defer closeRuntime(rt)
	}

	extractor := extract.New(runtimeSaver{rt}, m.Spec.StagingDir(), m.Spec.Staging.KeepArchive)

	stages := []struct {
		id    ExecutionStage
		label string
		color string
		stage Stage
	}{
		{StageAcquire, "Stage 1: Acquiring image", ColorCyan, NewAcquireStage(m, rt, opts.IsDryRun)},
		{StageRun, "Stage 2: Starting analysis container", ColorPurple, NewRunStage(m, rt, opts.IsDryRun)},
		{StageExtract, "Stage 3: Extracting image filesystem", ColorRed, NewExtractStage(m, extractor, opts.IsDryRun)},
	}

	ctx := context.Background()

	for _, entry := range stages {
		if state.shouldSkipStage(entry.id) {
			console.PrintStage(ColorGreen, fmt.Sprintf("⏭️  %s (skipped - already completed)", entry.label))
			fmt.Println()
			continue
		}

		console.PrintStage(entry.color, "🚧 "+entry.label)
		if err := entry.stage.Execute(ctx, state); err != nil {
			return fmt.Errorf("%s stage failed: %w", entry.stage.Name(), err)
		}

		// Update state after successful completion
		state.LastSuccessfulStage = entry.id
		if !opts.IsDryRun {
			if err := saveState(state); err != nil {
				return fmt.Errorf("failed to save state after %s: %w", entry.stage.Name(), err)
			}
		}
		fmt.Println()
	}

	// The analysis container has served its purpose once the filesystem is
	// unpacked; tear it down unless the caller wants to poke at it.
	if !opts.IsDryRun && !opts.KeepContainer {
		if err := rt.StopAndRemoveContainer(ctx, m.Spec.ContainerName()); err != nil {
			slog.Warn("Failed to tear down analysis container", "container", m.Spec.ContainerName(), "error", err)
		}
	}

	// Mark workflow as completed and clean up state file
	state.LastSuccessfulStage = StageCompleted
	if !opts.IsDryRun {
		if opts.RetainState {
			// Save final state for auditing purposes
			if err := saveState(state); err != nil {
				slog.Warn("Failed to save final state", "error", err)
			} else {
				slog.Info("State file retained for auditing", "file", StateFileName)
			}
		} else {
			// Remove state file on successful completion
			if err := removeStateFile(); err != nil {
				slog.Warn("Failed to clean up state file", "error", err)
			}
		}
	}

	// Workflow completion
	if opts.IsDryRun {
		console.PrintStage(ColorGreen, "🎉 DRY RUN COMPLETED - All stages simulated successfully!")
		console.PrintStage(ColorYellow, "No images, containers, or files were touched.")
	} else {
		console.PrintStage(ColorGreen, "🎉 STAGING COMPLETED SUCCESSFULLY!")
		console.PrintStage(ColorWhite, fmt.Sprintf("✨ Image '%s' is staged for inspection!", m.Spec.Image.Tag))
	}

	slog.Info("Staging workflow completed successfully", "manifestName", m.Metadata.Name, "dryRun", opts.IsDryRun)
	return nil
}

// runtimeSaver adapts a ContainerRuntime to the extractor's narrower
// interface while tolerating the nil runtime of dry runs.
type runtimeSaver struct {
	rt pkgruntime.ContainerRuntime
}

func (s runtimeSaver) SaveImage(ctx context.Context, tag string) (io.ReadCloser, error) {
	if s.rt == nil {
		return nil, fmt.Errorf("no container runtime available")
	}
	return s.rt.SaveImage(ctx, tag)
}

// closeRuntime releases the engine client connection when the runtime holds
// one.
func closeRuntime(rt pkgruntime.ContainerRuntime) {
	if closer, ok := rt.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			slog.Warn("Failed to close engine client", "error", err)
		}
	}
}

// ValidatePrerequisites checks that all required external dependencies are
// available: the engine daemon must answer a ping and the engine CLI must be
// on PATH for the command-runner fallback.
func ValidatePrerequisites() error {
	slog.Info("Validating layerlens prerequisites")

	rt, err := NewRuntimeFactory().GetRuntime("docker")
	if err != nil {
		return fmt.Errorf("container engine prerequisite check failed: %w", err)
	}
	defer closeRuntime(rt)

	runner := exec.NewRunner()
	version, err := runner.Run(context.Background(), exec.VersionCommand)
	if err != nil {
		return fmt.Errorf("engine CLI prerequisite check failed: %w", err)
	}
	slog.Info("Engine CLI available", "version", strings.TrimSpace(string(version)))

	slog.Info("All prerequisites validated successfully")
	return nil
}

// Teardown stops and removes the reserved analysis container named by the
// manifest. Missing containers are not an error.
func Teardown(manifestPath string) error {
	m, err := parser.Parse(manifestPath)
	if err != nil {
		return fmt.Errorf("manifest parsing failed: %w", err)
	}

	rt, err := NewRuntimeFactory().GetRuntime("docker")
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	return rt.StopAndRemoveContainer(context.Background(), m.Spec.ContainerName())
}
