package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	root := t.TempDir()
	r, err := NewPathResolver(root)
	require.NoError(t, err)

	tests := []struct {
		path    string
		want    string
		outside bool
	}{
		{path: "a.go", want: filepath.Join(root, "a.go")},
		{path: "dir/../b.go", want: filepath.Join(root, "b.go")},
		{path: " pkg/c.go ", want: filepath.Join(root, "pkg", "c.go")},
		{path: filepath.Join(root, "d.go"), want: filepath.Join(root, "d.go")},
		{path: "../escape.go", outside: true},
		{path: "/etc/passwd", outside: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := r.Resolve(tt.path)
			if tt.outside {
				assert.ErrorIs(t, err, ErrOutsideRoot)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = r.Resolve("  ")
	assert.Error(t, err)
	assert.Equal(t, "a.go", r.Rel(filepath.Join(root, "a.go")))
}

func TestBlobs(t *testing.T) {
	dir := t.TempDir()
	content := []byte("package main\n")
	h := Hash(content)

	require.NoError(t, WriteBlob(dir, h, content))
	got, err := ReadBlob(dir, h)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	empty, err := ReadBlob(dir, "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	h, err := HashFile(path)
	require.NoError(t, err)
	assert.Empty(t, h)

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	h, err = HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, Hash([]byte("x")), h)
}

func TestWorkspaceStaging(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(existing, []byte("one\n"), 0o644))
	r, err := NewPathResolver(root)
	require.NoError(t, err)
	ws := New(r)

	content, ok, err := ws.Read(existing)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "one\n", content)

	require.NoError(t, ws.Stage(existing, "two\n"))
	require.NoError(t, ws.Stage(existing, "three\n"))
	content, _, err = ws.Read(existing)
	require.NoError(t, err)
	assert.Equal(t, "three\n", content)

	created := filepath.Join(root, "new", "b.txt")
	_, ok, err = ws.Read(created)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, ws.Stage(created, "b\n"))

	unchanged := filepath.Join(root, "c.txt")
	require.NoError(t, os.WriteFile(unchanged, []byte("c\n"), 0o644))
	require.NoError(t, ws.Stage(unchanged, "c\n"))

	changes := ws.Staged()
	require.Len(t, changes, 2)
	assert.Equal(t, Change{Path: existing, Old: "one\n", New: "three\n", Existed: true}, changes[0])
	assert.True(t, changes[1].Created())
	assert.Equal(t, created, changes[1].Path)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "one\n", string(data))
}

func TestDiskWriter(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "deep", "dir", "f.sh")

	require.NoError(t, DiskWriter{}.Write(context.Background(), path, "echo 1\n"))
	require.NoError(t, os.Chmod(path, 0o755))
	require.NoError(t, DiskWriter{}.Write(context.Background(), path, "echo 2\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "echo 2\n", string(data))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, DiskWriter{}.Write(ctx, path, "x"), context.Canceled)
}
