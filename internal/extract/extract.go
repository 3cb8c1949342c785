package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "layerlens/internal/errors"
)

// ImageSaver is the slice of the container runtime needed for extraction.
type ImageSaver interface {
	SaveImage(ctx context.Context, tag string) (io.ReadCloser, error)
}

// Extractor exports image archives and unpacks them under the staging
// directory for offline filesystem inspection.
type Extractor struct {
	saver       ImageSaver
	stagingDir  string
	keepArchive bool
}

// New creates an Extractor writing under stagingDir. When keepArchive is set
// the intermediate tar file is left behind next to the unpacked tree.
func New(saver ImageSaver, stagingDir string, keepArchive bool) *Extractor {
	return &Extractor{
		saver:       saver,
		stagingDir:  stagingDir,
		keepArchive: keepArchive,
	}
}

// Extract exports the image to a tar archive, streaming it chunk by chunk to
// disk, unpacks it, and returns the directory holding the raw image layer
// filesystem. On success the intermediate archive is deleted unless
// keepArchive was set.
func (e *Extractor) Extract(ctx context.Context, tag string) (string, error) {
	if err := os.MkdirAll(e.stagingDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	base := strings.ReplaceAll(tag, ":", "_")
	base = strings.ReplaceAll(base, "/", "_")
	tarPath := filepath.Join(e.stagingDir, base+".tar")
	destDir := filepath.Join(e.stagingDir, base)

	slog.Info("Exporting image archive", "image", tag, "archive", tarPath)

	reader, err := e.saver.SaveImage(ctx, tag)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	if err := writeArchive(tarPath, reader); err != nil {
		return "", err
	}

	slog.Info("Unpacking image archive", "archive", tarPath, "dir", destDir)

	if err := untar(tarPath, destDir); err != nil {
		return "", fmt.Errorf("failed to unpack image archive: %w", err)
	}

	entries, err := os.ReadDir(destDir)
	if err != nil || len(entries) == 0 {
		if err == nil {
			err = fmt.Errorf("unpack directory %s is empty", destDir)
		}
		return "", apperrors.NewExtractError(
			fmt.Sprintf("Nothing unpacked after extracting %s", tag),
			"The image archive did not produce a filesystem tree",
			"Re-run with --keep-archive and inspect the archive by hand",
			err,
		)
	}

	if !e.keepArchive {
		if err := os.Remove(tarPath); err != nil {
			return "", fmt.Errorf("failed to remove intermediate archive: %w", err)
		}
	}

	slog.Info("Image filesystem extracted", "image", tag, "dir", destDir)
	return destDir, nil
}

// writeArchive streams the export to disk without buffering the whole image
// in memory.
func writeArchive(tarPath string, reader io.Reader) error {
	f, err := os.Create(tarPath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	if _, err := io.Copy(f, reader); err != nil {
		f.Close()
		return fmt.Errorf("failed to write archive file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close archive file: %w", err)
	}

	return nil
}
