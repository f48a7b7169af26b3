package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
}

func TestFindByPattern(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "600001.parquet")
	touch(t, dir, "000001.parquet")
	touch(t, dir, "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.parquet"), 0o755))

	found, err := NewDiscovery("").FindByPattern(dir, "*.parquet")
	require.NoError(t, err)

	require.Len(t, found, 2)
	assert.Equal(t, "000001.parquet", found[0].Name)
	assert.Equal(t, filepath.Join(dir, "600001.parquet"), found[1].Path)
	assert.Equal(t, int64(1), found[0].Size)
}

func TestFindByPattern_RelativeDir(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(base, "ticks"), 0o755))
	touch(t, filepath.Join(base, "ticks"), "600000.parquet")

	found, err := NewDiscovery(base).FindByPattern("ticks", "*.parquet")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, filepath.Join(base, "ticks", "600000.parquet"), found[0].Path)
}

func TestFindByPattern_Errors(t *testing.T) {
	_, err := NewDiscovery("").FindByPattern(t.TempDir(), "[")
	assert.Error(t, err)

	_, err = NewDiscovery("").FindByPattern(filepath.Join(t.TempDir(), "missing"), "*")
	assert.Error(t, err)
}

func TestPaths_Limit(t *testing.T) {
	in := []FileInfo{{Path: "a"}, {Path: "b"}, {Path: "c"}}

	assert.Equal(t, []string{"a", "b"}, Paths(in, 2))
	assert.Equal(t, []string{"a", "b", "c"}, Paths(in, 0))
	assert.Equal(t, []string{"a", "b", "c"}, Paths(in, 10))
	assert.Empty(t, Paths(nil, 0))
}
