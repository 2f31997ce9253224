package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/editstream/internal/workspace"
)

type fixture struct {
	root  string
	store *Store
	w     workspace.DiskWriter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	store, err := New(filepath.Join(root, ".editstream"))
	require.NoError(t, err)
	return &fixture{root: root, store: store}
}

func (f *fixture) apply(t *testing.T, changes ...workspace.Change) string {
	t.Helper()
	for _, c := range changes {
		require.NoError(t, f.w.Write(context.Background(), c.Path, c.New))
	}
	id, err := f.store.Record(changes)
	require.NoError(t, err)
	return id
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestUndoRedo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	modified := filepath.Join(f.root, "a.txt")
	created := filepath.Join(f.root, "b.txt")
	require.NoError(t, os.WriteFile(modified, []byte("old\n"), 0o644))

	id := f.apply(t,
		workspace.Change{Path: modified, Old: "old\n", New: "new\n", Existed: true},
		workspace.Change{Path: created, New: "created\n"},
	)
	assert.NotEmpty(t, id)

	res, err := f.store.Undo(ctx, f.w)
	require.NoError(t, err)
	assert.Equal(t, id, res.ID)
	assert.Equal(t, []string{modified}, res.Restored)
	assert.Equal(t, []string{created}, res.Removed)
	assert.Equal(t, "old\n", read(t, modified))
	assert.NoFileExists(t, created)

	_, err = f.store.Undo(ctx, f.w)
	assert.ErrorIs(t, err, ErrNothingToUndo)

	res, err = f.store.Redo(ctx, f.w)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{modified, created}, res.Restored)
	assert.Equal(t, "new\n", read(t, modified))
	assert.Equal(t, "created\n", read(t, created))

	_, err = f.store.Redo(ctx, f.w)
	assert.ErrorIs(t, err, ErrNothingToRedo)
}

func TestUndoRefusesEditedFiles(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1\n"), 0o644))
	f.apply(t, workspace.Change{Path: path, Old: "v1\n", New: "v2\n", Existed: true})

	require.NoError(t, os.WriteFile(path, []byte("edited by hand\n"), 0o644))

	res, err := f.store.Undo(context.Background(), f.w)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, res.Failed)
	assert.Equal(t, "edited by hand\n", read(t, path))
}

func TestPersistence(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("1\n"), 0o644))
	first := f.apply(t, workspace.Change{Path: path, Old: "1\n", New: "2\n", Existed: true})
	second := f.apply(t, workspace.Change{Path: path, Old: "2\n", New: "3\n", Existed: true})

	reopened, err := New(f.store.Dir())
	require.NoError(t, err)
	entries, idx := reopened.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, 1, idx)
	assert.Equal(t, first, entries[0].ID)
	assert.Equal(t, second, entries[1].ID)
	assert.Equal(t, f.store.state, reopened.state)

	_, err = reopened.Undo(context.Background(), f.w)
	require.NoError(t, err)
	_, err = reopened.Undo(context.Background(), f.w)
	require.NoError(t, err)
	assert.Equal(t, "1\n", read(t, path))
}

func TestRecordDiscardsRedo(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("1\n"), 0o644))
	f.apply(t, workspace.Change{Path: path, Old: "1\n", New: "2\n", Existed: true})

	_, err := f.store.Undo(context.Background(), f.w)
	require.NoError(t, err)
	f.apply(t, workspace.Change{Path: path, Old: "1\n", New: "other\n", Existed: true})

	entries, idx := f.store.Entries()
	assert.Len(t, entries, 1)
	assert.Equal(t, 0, idx)
	_, err = f.store.Redo(context.Background(), f.w)
	assert.ErrorIs(t, err, ErrNothingToRedo)
}

func TestRecordDropsStaleEntries(t *testing.T) {
	f := newFixture(t)
	a := filepath.Join(f.root, "a.txt")
	b := filepath.Join(f.root, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("1\n"), 0o644))
	f.apply(t, workspace.Change{Path: a, Old: "1\n", New: "2\n", Existed: true})

	require.NoError(t, os.WriteFile(a, []byte("edited\n"), 0o644))
	latest := f.apply(t, workspace.Change{Path: b, New: "b\n"})

	entries, idx := f.store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 0, idx)
	assert.Equal(t, latest, entries[0].ID)
}
