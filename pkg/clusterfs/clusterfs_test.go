package clusterfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.jar"), []byte("x"), 0o644))

	fs := NewLocalFileSystem(dir)

	exists, err := fs.Exists("app.jar")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = fs.Exists("missing.jar")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListStatus(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "appcache"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "appcache", "worker_1"), []byte("abc"), 0o644))

	fs := NewLocalFileSystem(dir)

	statuses, err := fs.ListStatus("appcache")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].IsDir)
	assert.EqualValues(t, 3, statuses[0].Size)
}

func TestResolveRelativeAndAbsolute(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocalFileSystem(dir)

	resolved, err := fs.Resolve("appcache/worker_1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "appcache/worker_1"), resolved)

	resolved, err = fs.Resolve("/already/absolute")
	require.NoError(t, err)
	assert.Equal(t, "/already/absolute", resolved)
}
