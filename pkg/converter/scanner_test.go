package converter_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbatch/rawbatch/internal/testutil"
	"github.com/rawbatch/rawbatch/pkg/converter"
)

func discardHandler() slog.Handler {
	return slog.NewTextHandler(io.Discard, nil)
}

func scannerOpts(t *testing.T, inputDir string, hooks converter.Hooks) *converter.Options {
	t.Helper()
	if hooks == nil {
		hooks = &converter.NoOpHooks{}
	}
	return &converter.Options{
		InputPath:  inputDir,
		Extensions: converter.DefaultExtensions,
		EventHooks: hooks,
		Logger:     discardHandler(),
	}
}

func TestScanFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	testutil.CreateDummyFile(t, filepath.Join(dir, "sub", "c.NEF"), "raw")
	testutil.CreateDummyFile(t, filepath.Join(dir, "b.txt"), "text")
	testutil.CreateDummyFile(t, filepath.Join(dir, "a.DNG"), "raw")

	hooks := &testutil.RecordingHooks{}
	s := converter.NewScanner(scannerOpts(t, dir, hooks), discardHandler())

	tasks, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, tasks, 2)
	assert.Equal(t, "a.DNG", tasks[0].RelPath)
	assert.Equal(t, "sub/c.NEF", tasks[1].RelPath)
	assert.Equal(t, "dng", tasks[0].Ext)
	assert.Equal(t, "nef", tasks[1].Ext)

	// Discovery hooks fire in sorted order.
	assert.Equal(t, []string{"a.DNG", "sub/c.NEF"}, hooks.DiscoveredPaths())
}

func TestScanEmptyDirectory(t *testing.T) {
	s := converter.NewScanner(scannerOpts(t, t.TempDir(), nil), discardHandler())
	tasks, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestScanExtensionCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	testutil.CreateDummyFile(t, filepath.Join(dir, "upper.ARW"), "raw")
	testutil.CreateDummyFile(t, filepath.Join(dir, "lower.arw"), "raw")
	testutil.CreateDummyFile(t, filepath.Join(dir, "mixed.Cr2"), "raw")

	s := converter.NewScanner(scannerOpts(t, dir, nil), discardHandler())
	tasks, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}

func TestScanCustomExtensions(t *testing.T) {
	dir := t.TempDir()
	testutil.CreateDummyFile(t, filepath.Join(dir, "a.nef"), "raw")
	testutil.CreateDummyFile(t, filepath.Join(dir, "b.arw"), "raw")

	opts := scannerOpts(t, dir, nil)
	opts.Extensions = []string{"nef"}
	s := converter.NewScanner(opts, discardHandler())

	tasks, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "a.nef", tasks[0].RelPath)
}

func TestScanMissingInput(t *testing.T) {
	opts := scannerOpts(t, filepath.Join(t.TempDir(), "absent"), nil)
	s := converter.NewScanner(opts, discardHandler())

	_, err := s.Scan(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, converter.ErrInputPathNotFound)
}

func TestScanCancelled(t *testing.T) {
	dir := t.TempDir()
	testutil.CreateDummyFile(t, filepath.Join(dir, "a.dng"), "raw")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := converter.NewScanner(scannerOpts(t, dir, nil), discardHandler())
	_, err := s.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanSkipsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}
	dir := t.TempDir()
	testutil.CreateDummyFile(t, filepath.Join(dir, "real.nef"), "raw")
	require.NoError(t, os.Symlink(filepath.Join(dir, "real.nef"), filepath.Join(dir, "link.nef")))

	s := converter.NewScanner(scannerOpts(t, dir, nil), discardHandler())
	tasks, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "real.nef", tasks[0].RelPath)
}
