package runtime

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func readAllEntries(t *testing.T, r io.Reader) map[string]string {
	t.Helper()

	entries := make(map[string]string)
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Failed to read tar entry: %s", err)
		}

		var body []byte
		if header.Typeflag == tar.TypeReg {
			body, err = io.ReadAll(tr)
			if err != nil {
				t.Fatalf("Failed to read tar body: %s", err)
			}
		}
		entries[header.Name] = string(body)
	}
	return entries
}

func TestTarBuildContext_IncludesFilesAndDirs(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %s", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "scripts"), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %s", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scripts", "setup.sh"), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("Failed to write fixture: %s", err)
	}

	reader, err := tarBuildContext(dir)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	entries := readAllEntries(t, reader)

	if entries["Dockerfile"] != "FROM scratch\n" {
		t.Errorf("Unexpected Dockerfile content: %q", entries["Dockerfile"])
	}
	if _, ok := entries["scripts"]; !ok {
		t.Error("Expected directory entry 'scripts' in archive")
	}
	if entries["scripts/setup.sh"] != "#!/bin/sh\n" {
		t.Errorf("Unexpected script content: %q", entries["scripts/setup.sh"])
	}
}

func TestTarBuildContext_UsesSlashSeparatedNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "a", "b"), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %s", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a", "b", "c.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %s", err)
	}

	reader, err := tarBuildContext(dir)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err)
	}

	entries := readAllEntries(t, reader)
	if _, ok := entries["a/b/c.txt"]; !ok {
		t.Errorf("Expected slash-separated entry 'a/b/c.txt', got entries: %v", entries)
	}
}

func TestTarBuildContext_MissingDirectory(t *testing.T) {
	_, err := tarBuildContext(filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("Expected error for missing directory, got nil")
	}
}
