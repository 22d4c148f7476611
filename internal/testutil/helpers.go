package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// CreateDummyFile creates a dummy file with specified content at the given path,
// ensuring parent directories exist. It uses require assertions for test setup.
func CreateDummyFile(t *testing.T, path string, content string) {
	t.Helper()
	fullPath := filepath.Clean(path)
	dir := filepath.Dir(fullPath)
	err := os.MkdirAll(dir, 0o755)
	require.NoError(t, err, "Failed to create directory %s for dummy file", dir)
	err = os.WriteFile(fullPath, []byte(content), 0o644)
	require.NoError(t, err, "Failed to write dummy file %s", fullPath)
}

// CreateDummyDir ensures a directory exists at the given path, creating parents if needed.
func CreateDummyDir(t *testing.T, path string) {
	t.Helper()
	err := os.MkdirAll(filepath.Clean(path), 0o755)
	require.NoError(t, err, "Failed to create dummy directory %s", path)
}

// Touch sets the modification time of path, creating an empty file first if
// needed. Used to arrange skip-if-up-to-date scenarios.
func Touch(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		CreateDummyFile(t, path, "")
	}
	require.NoError(t, os.Chtimes(path, modTime, modTime), "Failed to set mtime on %s", path)
}
