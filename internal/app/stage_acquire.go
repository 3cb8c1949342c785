package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"layerlens/internal/source"
	"layerlens/pkg/manifest"
	pkgruntime "layerlens/pkg/runtime"
)

// AcquireStage implements the Stage interface for making the image available
// locally, either by building it from a Dockerfile or pulling it from a
// registry.
type AcquireStage struct {
	manifest *manifest.Manifest
	runtime  pkgruntime.ContainerRuntime
	isDryRun bool
}

// NewAcquireStage creates a new acquire stage instance
func NewAcquireStage(m *manifest.Manifest, rt pkgruntime.ContainerRuntime, isDryRun bool) *AcquireStage {
	return &AcquireStage{
		manifest: m,
		runtime:  rt,
		isDryRun: isDryRun,
	}
}

// Name returns the name of the stage
func (s *AcquireStage) Name() string {
	return string(StageAcquire)
}

// Execute makes the manifest's image available on the local engine
func (s *AcquireStage) Execute(ctx context.Context, state *ExecutionState) error {
	spec := &s.manifest.Spec
	tag := spec.Image.Tag

	if s.isDryRun {
		if spec.Build != nil {
			fmt.Printf("%s🔍 DRY RUN: Would build image '%s' from %s%s\n", ColorYellow, tag, spec.Build.Dockerfile, ColorReset)
		} else {
			fmt.Printf("%s🔍 DRY RUN: Would pull image '%s'%s\n", ColorYellow, tag, ColorReset)
		}
		return nil
	}

	if spec.Build != nil {
		return s.buildImage(ctx, state, spec, tag)
	}

	exists, err := s.runtime.ImageExists(ctx, tag)
	if err != nil {
		return err
	}
	if exists {
		fmt.Printf("%s✅ Image already present: %s%s\n", ColorGreen, tag, ColorReset)
		slog.Info("Image already present, skipping pull", "image", tag)
		return nil
	}

	found, err := s.runtime.PullImage(ctx, tag)
	if err != nil {
		return fmt.Errorf("pull of %s failed: %w", tag, err)
	}
	if !found {
		return fmt.Errorf("image %s not found on the remote registry", tag)
	}

	fmt.Printf("%s✅ Image pulled: %s%s\n", ColorGreen, tag, ColorReset)
	slog.Info("Acquire stage completed", "image", tag, "method", "pull")
	return nil
}

// buildImage resolves the Dockerfile, cloning the build context first when
// the manifest names a git source.
func (s *AcquireStage) buildImage(ctx context.Context, state *ExecutionState, spec *manifest.Spec, tag string) error {
	dockerfile := spec.Build.Dockerfile

	if spec.Build.Source != "" {
		cloneDir := filepath.Join(spec.StagingDir(), "src-"+state.RunID)
		gitSource := source.NewGitSource(spec.Build.Source, spec.Build.Ref)
		dir, err := gitSource.Fetch(ctx, cloneDir)
		if err != nil {
			return fmt.Errorf("fetching build context failed: %w", err)
		}
		dockerfile = filepath.Join(dir, spec.Build.Dockerfile)
	}

	if err := s.runtime.BuildImage(ctx, dockerfile, tag); err != nil {
		return fmt.Errorf("build of %s failed: %w", tag, err)
	}

	fmt.Printf("%s✅ Image built: %s%s\n", ColorGreen, tag, ColorReset)
	slog.Info("Acquire stage completed", "image", tag, "method", "build")
	return nil
}
