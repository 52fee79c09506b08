package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/snippy/internal/fs"
	"github.com/sokinpui/snippy/model"
)

func setup(t *testing.T) (*fs.Applier, *Journal, string) {
	t.Helper()
	r, err := fs.NewResolver(t.TempDir())
	require.NoError(t, err)
	j, err := Open(r.Base())
	require.NoError(t, err)
	return fs.NewApplier(r, fs.WithHooks(j)), j, r.Base()
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestUndoRestoresBatch(t *testing.T) {
	a, j, base := setup(t)
	existing := filepath.Join(base, "main.go")
	require.NoError(t, os.WriteFile(existing, []byte("package old\n"), 0o600))

	results := a.Apply([]model.SnippetBlock{
		{DeclaredPath: "main.go", Body: "package new"},
		{DeclaredPath: "pkg/new.go", Body: "package pkg"},
	})
	require.True(t, results[0].Written())
	require.True(t, results[1].Written())
	require.Len(t, j.History(), 1)

	undone, err := j.Undo(false)
	require.NoError(t, err)
	require.Len(t, undone, 2)
	for _, r := range undone {
		assert.True(t, r.Written(), r.Path)
	}

	assert.Equal(t, "package old\n", read(t, existing))
	assert.NoFileExists(t, filepath.Join(base, "pkg", "new.go"))
	info, err := os.Stat(existing)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = j.Undo(false)
	assert.True(t, errors.Is(err, model.ErrNothingToUndo))
}

func TestUndoRefusesChangedFiles(t *testing.T) {
	a, j, base := setup(t)
	a.Apply([]model.SnippetBlock{{DeclaredPath: "a.txt", Body: "from clipboard"}})

	path := filepath.Join(base, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("edited by hand\n"), 0o644))

	_, err := j.Undo(false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConflict))
	assert.Equal(t, "edited by hand\n", read(t, path))
	assert.Len(t, j.History(), 1, "refused undo keeps the entry")

	_, err = j.Undo(true)
	require.NoError(t, err)
	assert.NoFileExists(t, path)
}

func TestJournalSkipsFailedWrites(t *testing.T) {
	a, j, _ := setup(t)

	a.Apply([]model.SnippetBlock{{DeclaredPath: "../outside.txt", Body: "x"}})
	assert.Empty(t, j.History())

	entries, err := os.ReadDir(j.StateDir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, TrashDir, e.Name(), "no backups for an empty batch")
	}
}

func TestJournalPersists(t *testing.T) {
	a, j, base := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(base, "a.txt"), []byte("one\n"), 0o644))
	a.Apply([]model.SnippetBlock{{DeclaredPath: "a.txt", Body: "two"}})
	a.Apply([]model.SnippetBlock{{DeclaredPath: "a.txt", Body: "three"}, {DeclaredPath: "b.txt", Body: "b"}})

	reopened, err := Open(base)
	require.NoError(t, err)
	history := reopened.History()
	require.Len(t, history, 2)
	assert.Equal(t, j.History(), history)

	second := history[1]
	require.Len(t, second.Operations, 2)
	assert.Equal(t, "a.txt", second.Operations[0].Path)
	assert.Equal(t, model.ActionModify, second.Operations[0].Action)
	assert.NotEmpty(t, second.Operations[0].Backup)
	assert.Equal(t, model.ActionCreate, second.Operations[1].Action)
	assert.Empty(t, second.Operations[1].Backup)

	_, err = reopened.Undo(false)
	require.NoError(t, err)
	assert.Equal(t, "two\n", read(t, filepath.Join(base, "a.txt")))
	_, err = reopened.Undo(false)
	require.NoError(t, err)
	assert.Equal(t, "one\n", read(t, filepath.Join(base, "a.txt")))
}

func TestWriteTruncatesUndoneEntries(t *testing.T) {
	a, j, _ := setup(t)
	a.Apply([]model.SnippetBlock{{DeclaredPath: "a.txt", Body: "a"}})
	_, err := j.Undo(false)
	require.NoError(t, err)

	a.Apply([]model.SnippetBlock{{DeclaredPath: "b.txt", Body: "b"}})
	history := j.History()
	require.Len(t, history, 1)
	assert.Equal(t, "b.txt", history[0].Operations[0].Path)
}

func TestOpenDiscardsCorruptJournal(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, fs.StateDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, fs.StateDir, stateFileName), []byte("not a number\n"), 0o644))

	j, err := Open(base)
	require.NoError(t, err)
	assert.Empty(t, j.History())
}
