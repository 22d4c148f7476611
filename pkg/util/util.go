package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputPath maps a slash-separated relative source path to the corresponding
// output path under outputRoot, replacing the source extension with ext.
// The directory structure of the source tree is preserved.
func OutputPath(outputRoot, relPath, ext string) string {
	base := strings.TrimSuffix(relPath, filepath.Ext(relPath)) + ext
	return filepath.Join(outputRoot, filepath.FromSlash(base))
}

// EnsureDir creates dir and any missing parents. A single retry covers the
// window where a sibling worker removes a freshly shared parent.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if retryErr := os.MkdirAll(dir, 0o755); retryErr != nil {
			return fmt.Errorf("mkdir %s: %w", dir, retryErr)
		}
	}
	return nil
}

// WriteFileAtomic writes data to path via a temporary file in the same
// directory followed by a rename, so readers never observe a partial file.
// The temporary file is removed on any failure.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s to %s: %w", tmpName, path, err)
	}
	return nil
}

// HumanSize renders a byte count using binary units, matching the style of
// the run summary output.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
