package profile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbatch/rawbatch/pkg/converter/profile"
)

// writeProfiles creates a profile directory with the given filenames, each
// holding its own name as content so tests can tell payloads apart.
func writeProfiles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
	return dir
}

func TestNewCatalogIndexing(t *testing.T) {
	dir := writeProfiles(t,
		"Nikon_D750.icm",
		"Nikon_D750_landscape.icm",
		"Sony_ILCE-7M3_portrait.icc",
		"notes.txt",       // wrong extension, ignored
		"badname.icm",     // single field, skipped
		"a_b_c_d.icm",     // too many fields, skipped
	)

	cat, err := profile.NewCatalog(dir, 0, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, cat.Len())
	assert.Equal(t, []string{"Nikon", "Sony"}, cat.Brands())
	assert.Equal(t, []string{"D750"}, cat.Models("Nikon"))
	assert.Equal(t, []string{"landscape", "standard"}, cat.Scenes("Nikon", "D750"))
}

func TestNewCatalogMissingDir(t *testing.T) {
	cat, err := profile.NewCatalog(filepath.Join(t.TempDir(), "absent"), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Len())

	_, ok := cat.Resolve("Nikon", "D750", "", false)
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	dir := writeProfiles(t,
		"Nikon_D750.icm",
		"Nikon_D750_landscape.icm",
		"Nikon_D850_standard.icm",
	)
	cat, err := profile.NewCatalog(dir, 0, nil)
	require.NoError(t, err)

	t.Run("ExactScene", func(t *testing.T) {
		e, ok := cat.Resolve("Nikon", "D750", "landscape", false)
		require.True(t, ok)
		assert.Equal(t, "landscape", e.Scene)
	})

	t.Run("FallsBackToDefaultScene", func(t *testing.T) {
		e, ok := cat.Resolve("Nikon", "D750", "portrait", false)
		require.True(t, ok)
		assert.Equal(t, "standard", e.Scene)
	})

	t.Run("FallsBackToBrand", func(t *testing.T) {
		e, ok := cat.Resolve("Nikon", "Z9", "standard", false)
		require.True(t, ok)
		assert.Equal(t, "Nikon", e.Brand)
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		_, ok := cat.Resolve("nikon", "d750", "LANDSCAPE", false)
		assert.True(t, ok)
	})

	t.Run("StrictRequiresExact", func(t *testing.T) {
		_, ok := cat.Resolve("Nikon", "D750", "portrait", true)
		assert.False(t, ok)

		_, ok = cat.Resolve("Nikon", "D750", "landscape", true)
		assert.True(t, ok)
	})

	t.Run("UnknownBrand", func(t *testing.T) {
		_, ok := cat.Resolve("Canon", "EOS R5", "", false)
		assert.False(t, ok)
	})
}

func TestLoadCaching(t *testing.T) {
	dir := writeProfiles(t, "Nikon_D750.icm", "Sony_A1.icm", "Canon_R5.icm")
	cat, err := profile.NewCatalog(dir, 2, nil)
	require.NoError(t, err)

	nikon, ok := cat.Resolve("Nikon", "D750", "", false)
	require.True(t, ok)
	sony, ok := cat.Resolve("Sony", "A1", "", false)
	require.True(t, ok)
	canon, ok := cat.Resolve("Canon", "R5", "", false)
	require.True(t, ok)

	data, err := cat.Load(nikon)
	require.NoError(t, err)
	assert.Equal(t, []byte("Nikon_D750.icm"), data)

	// Second load of the same entry hits the cache.
	_, err = cat.Load(nikon)
	require.NoError(t, err)
	stats := cat.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	// Filling past capacity evicts the oldest payload.
	_, err = cat.Load(sony)
	require.NoError(t, err)
	_, err = cat.Load(canon)
	require.NoError(t, err)
	stats = cat.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Entries)
}

func TestLoadMissingFile(t *testing.T) {
	dir := writeProfiles(t, "Nikon_D750.icm")
	cat, err := profile.NewCatalog(dir, 0, nil)
	require.NoError(t, err)

	entry, ok := cat.Resolve("Nikon", "D750", "", false)
	require.True(t, ok)
	require.NoError(t, os.Remove(entry.Path))

	_, err = cat.Load(entry)
	assert.Error(t, err)
}
