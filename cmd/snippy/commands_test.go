package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/snippy/internal/nvim"
	"github.com/sokinpui/snippy/model"
)

// isolate keeps the developer's config files, env and neovim out of the
// test and returns a fresh working directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv(nvim.EnvListenAddress, "")
	t.Chdir(dir)
	color.NoColor = true
	return dir
}

// pipeStdin replaces os.Stdin with a regular file holding content, which
// apply treats as piped input.
func pipeStdin(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)

	prev := os.Stdin
	os.Stdin = f
	t.Cleanup(func() {
		os.Stdin = prev
		_ = f.Close()
	})
}

func run(cmd *cobra.Command, args ...string) error {
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(context.Background())
}

func TestApplyCmd(t *testing.T) {
	const blocks = "Sure:\n\n### a.txt\n```\nhello\n```\n\n### sub/b.go\n```go\npackage sub\n```\n"

	tests := []struct {
		name    string
		stdin   string
		args    func(dir string) []string
		want    map[string]string
		absent  []string
		journal bool
		wantErr error
	}{
		{
			name:    "writes piped blocks below dir",
			stdin:   blocks,
			args:    func(dir string) []string { return []string{filepath.Join(dir, "out")} },
			want:    map[string]string{"out/a.txt": "hello\n", "out/sub/b.go": "package sub\n"},
			journal: true,
		},
		{
			name:  "no journal",
			stdin: blocks,
			args:  func(dir string) []string { return []string{"--no-journal", filepath.Join(dir, "out")} },
			want:  map[string]string{"out/a.txt": "hello\n"},
		},
		{
			name:  "ignore flag",
			stdin: blocks,
			args: func(dir string) []string {
				return []string{"--ignore", "**/*.go", filepath.Join(dir, "out")}
			},
			want:    map[string]string{"out/a.txt": "hello\n"},
			absent:  []string{"out/sub/b.go"},
			journal: true,
		},
		{
			name:    "prose only writes nothing",
			stdin:   "No files in this answer.\n",
			args:    func(dir string) []string { return []string{filepath.Join(dir, "out")} },
			want:    map[string]string{},
			absent:  []string{"out/a.txt"},
			journal: true,
		},
		{
			name:    "missing dir",
			stdin:   blocks,
			args:    func(dir string) []string { return []string{filepath.Join(dir, "absent")} },
			wantErr: model.ErrIO,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			if tt.wantErr == nil {
				require.NoError(t, os.Mkdir(filepath.Join(dir, "out"), 0o755))
			}
			pipeStdin(t, tt.stdin)

			err := run(newApplyCmd(), tt.args(dir)...)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)

			for rel, content := range tt.want {
				data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
				require.NoError(t, err)
				assert.Equal(t, content, string(data), rel)
			}
			for _, rel := range tt.absent {
				assert.NoFileExists(t, filepath.Join(dir, filepath.FromSlash(rel)))
			}
			if tt.journal {
				assert.DirExists(t, filepath.Join(dir, "out", ".snippy"))
			} else {
				assert.NoDirExists(t, filepath.Join(dir, "out", ".snippy"))
			}
		})
	}
}

func TestApplyCmdRejectsExtraArgs(t *testing.T) {
	isolate(t)
	assert.Error(t, run(newApplyCmd(), "one", "two"))
}

func TestApplyThenUndoCmd(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("old\n"), 0o644))
	pipeStdin(t, "### a.txt\n```\nnew\n```\n\n### c.txt\n```\nc\n```\n")

	require.NoError(t, run(newApplyCmd()))
	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(data))

	require.NoError(t, run(newUndoCmd(), dir))
	data, err = os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(data))
	assert.NoFileExists(t, filepath.Join(dir, "c.txt"))

	assert.NoError(t, run(newUndoCmd()), "an empty journal is not an error")
}

func TestApplyCmdReadsLocalConfig(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".snippy.toml"), []byte("no-overwrite = true\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("mine\n"), 0o644))
	pipeStdin(t, "### keep.txt\n```\ntheirs\n```\n")

	require.NoError(t, run(newApplyCmd()))
	data, err := os.ReadFile(filepath.Join(dir, "keep.txt"))
	require.NoError(t, err)
	assert.Equal(t, "mine\n", string(data))
}

func TestWatchCmdValidatesFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "zero interval", args: []string{"--interval", "0s"}},
		{name: "negative read failures", args: []string{"--max-read-failures=-1"}},
		{name: "two dirs", args: []string{"a", "b"}},
		{name: "unknown flag", args: []string{"--bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			assert.Error(t, run(newWatchCmd(), tt.args...))
		})
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "snippy "+Version+"\n", out.String())
}
