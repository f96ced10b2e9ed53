// Package testutil provides testing utilities for nvopen tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// WriteTree creates a temporary directory populated with the given files.
// The files map contains relative paths to file contents; directories are
// created as needed. Returns the tree root, cleaned up when the test ends.
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()

	for path, content := range files {
		fullPath := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file %s: %v", path, err)
		}
	}

	return dir
}

// Touch sets the modification time of a file, failing the test on error.
// Used to build deterministic most-recently-modified fixtures.
func Touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()

	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to set mtime on %s: %v", path, err)
	}
}

// BinaryContent returns bytes that no reasonable content probe calls text.
func BinaryContent() string {
	return "\x7fELF\x02\x01\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00"
}

// SkipIfNoCommand skips the test if the named binary is not installed.
func SkipIfNoCommand(t *testing.T, name string) {
	t.Helper()

	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not found in PATH, skipping test", name)
	}
}

// SkipIfNoNvim skips the test if nvim is not installed.
func SkipIfNoNvim(t *testing.T) {
	t.Helper()
	SkipIfNoCommand(t, "nvim")
}
