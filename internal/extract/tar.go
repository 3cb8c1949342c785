package extract

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// untar unpacks the archive into dest, creating it if needed. Entries that
// would escape dest are rejected.
func untar(tarPath, dest string) error {
	f, err := os.Open(tarPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(dest, 0750); err != nil {
		return fmt.Errorf("failed to create unpack directory: %w", err)
	}

	tr := tar.NewReader(f)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read archive entry: %w", err)
		}

		target, err := safeJoin(dest, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, fs.FileMode(header.Mode)); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, fs.FileMode(header.Mode), tr); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := checkLinkTarget(dest, header.Name, header.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil && !os.IsExist(err) {
				return fmt.Errorf("failed to create symlink %s: %w", target, err)
			}
		case tar.TypeLink:
			source, err := safeJoin(dest, header.Linkname)
			if err != nil {
				return err
			}
			if err := os.Link(source, target); err != nil && !os.IsExist(err) {
				return fmt.Errorf("failed to create hard link %s: %w", target, err)
			}
		default:
			// Device nodes and the like have no place in a staging tree
			continue
		}
	}

	return nil
}

func writeEntry(target string, mode fs.FileMode, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", target, err)
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write file %s: %w", target, err)
	}

	return out.Close()
}

// checkLinkTarget rejects symlink targets that resolve outside dest. Later
// entries are written through earlier symlinks, so an escaping target would
// let the archive place files anywhere.
func checkLinkTarget(dest, name, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("archive symlink %q targets absolute path %q", name, linkname)
	}
	resolved := filepath.Join(filepath.Dir(name), linkname)
	if _, err := safeJoin(dest, resolved); err != nil {
		return fmt.Errorf("archive symlink %q escapes unpack directory via %q", name, linkname)
	}
	return nil
}

// safeJoin joins name onto dest and rejects paths that climb out of it.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	if target != filepath.Clean(dest) &&
		!strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes unpack directory", name)
	}
	return target, nil
}
