package app

import (
	"context"
	"fmt"
	"log/slog"

	"layerlens/internal/extract"
	"layerlens/pkg/manifest"
)

// ExtractStage implements the Stage interface for exporting the image and
// unpacking its filesystem under the staging directory.
type ExtractStage struct {
	manifest  *manifest.Manifest
	extractor *extract.Extractor
	isDryRun  bool
}

// NewExtractStage creates a new extract stage instance
func NewExtractStage(m *manifest.Manifest, extractor *extract.Extractor, isDryRun bool) *ExtractStage {
	return &ExtractStage{
		manifest:  m,
		extractor: extractor,
		isDryRun:  isDryRun,
	}
}

// Name returns the name of the stage
func (s *ExtractStage) Name() string {
	return string(StageExtract)
}

// Execute exports and unpacks the image filesystem
func (s *ExtractStage) Execute(ctx context.Context, state *ExecutionState) error {
	spec := &s.manifest.Spec
	tag := spec.Image.Tag

	if s.isDryRun {
		fmt.Printf("%s🔍 DRY RUN: Would export '%s' and unpack it under %s%s\n", ColorYellow, tag, spec.StagingDir(), ColorReset)
		return nil
	}

	dir, err := s.extractor.Extract(ctx, tag)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	fmt.Printf("%s✅ Image filesystem unpacked to: %s%s\n", ColorGreen, dir, ColorReset)
	slog.Info("Extract stage completed", "image", tag, "dir", dir)
	return nil
}
