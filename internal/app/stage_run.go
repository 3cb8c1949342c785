package app

import (
	"context"
	"fmt"
	"log/slog"

	"layerlens/pkg/manifest"
	pkgruntime "layerlens/pkg/runtime"
)

// RunStage implements the Stage interface for starting the reserved analysis
// container from the staged image.
type RunStage struct {
	manifest *manifest.Manifest
	runtime  pkgruntime.ContainerRuntime
	isDryRun bool
}

// NewRunStage creates a new run stage instance
func NewRunStage(m *manifest.Manifest, rt pkgruntime.ContainerRuntime, isDryRun bool) *RunStage {
	return &RunStage{
		manifest: m,
		runtime:  rt,
		isDryRun: isDryRun,
	}
}

// Name returns the name of the stage
func (s *RunStage) Name() string {
	return string(StageRun)
}

// Execute starts the reserved container, replacing any existing one of the
// same name
func (s *RunStage) Execute(ctx context.Context, state *ExecutionState) error {
	spec := &s.manifest.Spec
	name := spec.ContainerName()

	if s.isDryRun {
		fmt.Printf("%s🔍 DRY RUN: Would start container '%s' from image '%s'%s\n", ColorYellow, name, spec.Image.Tag, ColorReset)
		return nil
	}

	if err := s.runtime.StartContainer(ctx, spec.Image.Tag, name); err != nil {
		return fmt.Errorf("starting container failed: %w", err)
	}

	fmt.Printf("%s✅ Container started: %s%s\n", ColorGreen, name, ColorReset)
	slog.Info("Run stage completed", "container", name, "image", spec.Image.Tag)
	return nil
}
