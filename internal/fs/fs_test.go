package fs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/snippy/model"
)

func newTestApplier(t *testing.T, opts ...ApplierOption) (*Applier, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := NewResolver(dir)
	require.NoError(t, err)
	return NewApplier(r, opts...), r.Base()
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	r, err := NewResolver(dir)
	require.NoError(t, err)

	tests := []struct {
		name     string
		declared string
		want     string
		unsafe   bool
	}{
		{name: "relative", declared: "src/main.rs", want: filepath.Join(r.Base(), "src", "main.rs")},
		{name: "dot segments inside base", declared: "a/../b.txt", want: filepath.Join(r.Base(), "b.txt")},
		{name: "escape", declared: "../../etc/passwd", unsafe: true},
		{name: "absolute", declared: "/etc/passwd", unsafe: true},
		{name: "base itself", declared: "./", unsafe: true},
		{name: "state dir", declared: ".snippy/journal.json", unsafe: true},
		{name: "git dir", declared: ".git/config", unsafe: true},
		{name: "empty", declared: "  ", unsafe: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.declared)
			if tt.unsafe {
				require.Error(t, err)
				assert.True(t, errors.Is(err, model.ErrUnsafePath), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	dir := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "link")))

	r, err := NewResolver(dir)
	require.NoError(t, err)
	_, err = r.Resolve("link/evil.txt")
	assert.True(t, errors.Is(err, model.ErrUnsafePath), "got %v", err)
}

func TestNewResolverRequiresDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := NewResolver(file)
	assert.True(t, errors.Is(err, model.ErrIO))

	_, err = NewResolver(filepath.Join(file, "missing"))
	assert.True(t, errors.Is(err, model.ErrIO))
}

func TestApply(t *testing.T) {
	t.Run("creates file and directories", func(t *testing.T) {
		a, base := newTestApplier(t)
		results := a.Apply([]model.SnippetBlock{{DeclaredPath: "src/main.rs", Body: "fn main() {}"}})

		require.Len(t, results, 1)
		assert.Equal(t, model.StatusWritten, results[0].Status)
		assert.Equal(t, model.ActionCreate, results[0].Action)
		assert.Equal(t, "fn main() {}\n", readFile(t, filepath.Join(base, "src", "main.rs")))
	})

	t.Run("overwrites and preserves mode", func(t *testing.T) {
		a, base := newTestApplier(t)
		path := filepath.Join(base, "run.sh")
		require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o755))

		results := a.Apply([]model.SnippetBlock{{DeclaredPath: "run.sh", Body: "echo new"}})

		require.True(t, results[0].Written())
		assert.Equal(t, model.ActionModify, results[0].Action)
		assert.Equal(t, "echo new\n", readFile(t, path))
		if runtime.GOOS != "windows" {
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
		}
	})

	t.Run("empty body gives empty file", func(t *testing.T) {
		a, base := newTestApplier(t)
		results := a.Apply([]model.SnippetBlock{{DeclaredPath: "empty.txt", Body: ""}})

		require.True(t, results[0].Written())
		assert.Equal(t, "", readFile(t, filepath.Join(base, "empty.txt")))
	})

	t.Run("unsafe path does not stop batch", func(t *testing.T) {
		a, base := newTestApplier(t)
		results := a.Apply([]model.SnippetBlock{
			{DeclaredPath: "../../etc/passwd", Body: "x"},
			{DeclaredPath: "ok.txt", Body: "ok"},
		})

		require.Len(t, results, 2)
		assert.Equal(t, model.StatusFailed, results[0].Status)
		assert.True(t, errors.Is(results[0].Reason, model.ErrUnsafePath))
		assert.True(t, results[1].Written())
		assert.Equal(t, "ok\n", readFile(t, filepath.Join(base, "ok.txt")))
		_, err := os.Stat(filepath.Join(filepath.Dir(filepath.Dir(base)), "etc", "passwd"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("ignored path", func(t *testing.T) {
		a, base := newTestApplier(t, WithIgnore(NewIgnoreMatcher("secrets/**")))
		results := a.Apply([]model.SnippetBlock{{DeclaredPath: "secrets/key.pem", Body: "x"}})

		assert.True(t, errors.Is(results[0].Reason, model.ErrIgnored))
		assert.NoDirExists(t, filepath.Join(base, "secrets"))
	})

	t.Run("never overwrite", func(t *testing.T) {
		a, base := newTestApplier(t, WithOverwritePolicy(OverwriteNever))
		path := filepath.Join(base, "keep.txt")
		require.NoError(t, os.WriteFile(path, []byte("keep\n"), 0o644))

		results := a.Apply([]model.SnippetBlock{
			{DeclaredPath: "keep.txt", Body: "replace"},
			{DeclaredPath: "new.txt", Body: "new"},
		})

		assert.True(t, errors.Is(results[0].Reason, model.ErrExists))
		assert.Equal(t, "keep\n", readFile(t, path))
		assert.True(t, results[1].Written())
	})

	t.Run("directory destination fails", func(t *testing.T) {
		a, base := newTestApplier(t)
		require.NoError(t, os.Mkdir(filepath.Join(base, "dir"), 0o755))

		results := a.Apply([]model.SnippetBlock{{DeclaredPath: "dir", Body: "x"}})
		assert.True(t, errors.Is(results[0].Reason, model.ErrIO))
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		a, base := newTestApplier(t)
		a.Apply([]model.SnippetBlock{{DeclaredPath: "a.txt", Body: "a"}, {DeclaredPath: "a.txt", Body: "b"}})

		entries, err := os.ReadDir(base)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "a.txt", entries[0].Name())
	})
}

type recordingHook struct {
	before  []string
	batches [][]model.ApplyResult
	fail    string
}

func (h *recordingHook) BeforeWrite(abs string, _ model.FileAction) error {
	h.before = append(h.before, filepath.Base(abs))
	if filepath.Base(abs) == h.fail {
		return errors.Errorf("%w: backup failed", model.ErrIO)
	}
	return nil
}

func (h *recordingHook) AfterBatch(results []model.ApplyResult) {
	h.batches = append(h.batches, results)
}

func TestApplyHooks(t *testing.T) {
	hook := &recordingHook{fail: "b.txt"}
	a, base := newTestApplier(t, WithHooks(hook))

	results := a.Apply([]model.SnippetBlock{
		{DeclaredPath: "a.txt", Body: "a"},
		{DeclaredPath: "b.txt", Body: "b"},
		{DeclaredPath: "../escape.txt", Body: "c"},
	})

	assert.Equal(t, []string{"a.txt", "b.txt"}, hook.before)
	require.Len(t, hook.batches, 1)
	assert.Equal(t, results, hook.batches[0])
	assert.False(t, results[1].Written())
	assert.NoFileExists(t, filepath.Join(base, "b.txt"))
}

func TestWriteFileAtomicFailureLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing-dir", "f.txt")

	err := WriteFileAtomic(path, []byte("x"), 0o644)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrIO))
	assert.NoFileExists(t, path)
}
