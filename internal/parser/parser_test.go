package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/snippy/internal/format"
	"github.com/sokinpui/snippy/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []model.SnippetBlock
	}{
		{
			name: "single block",
			text: "### a.py\n```python\nprint(1)\n```\n",
			want: []model.SnippetBlock{{DeclaredPath: "a.py", LanguageHint: "python", Body: "print(1)"}},
		},
		{
			name: "prose around blocks",
			text: "Here is the fix you asked for.\n\n### src/main.rs\n```rust\nfn main() {}\n```\n\nLet me know if it works.\n",
			want: []model.SnippetBlock{{DeclaredPath: "src/main.rs", LanguageHint: "rust", Body: "fn main() {}"}},
		},
		{
			name: "backticked heading and blank lines before fence",
			text: "## `pkg/x.go`\n\n\n```go\npackage x\n```\n",
			want: []model.SnippetBlock{{DeclaredPath: "pkg/x.go", LanguageHint: "go", Body: "package x"}},
		},
		{
			name: "bare path line",
			text: "notes.txt\n```\nhello\n```\n",
			want: []model.SnippetBlock{{DeclaredPath: "notes.txt", Body: "hello"}},
		},
		{
			name: "bare word with colon is prose",
			text: "Example:\n```\nhello\n```\n",
			want: []model.SnippetBlock{},
		},
		{
			name: "bare word before a heading",
			text: "Output:\n### out.txt\n```\nok\n```\n",
			want: []model.SnippetBlock{{DeclaredPath: "out.txt", Body: "ok"}},
		},
		{
			name: "marked heading without extension",
			text: "### Makefile\n```make\nall:\n```\n",
			want: []model.SnippetBlock{{DeclaredPath: "Makefile", LanguageHint: "make", Body: "all:"}},
		},
		{
			name: "backticked path with spaces",
			text: "### `docs/my notes.md`\n```markdown\nhi\n```\n",
			want: []model.SnippetBlock{{DeclaredPath: "docs/my notes.md", LanguageHint: "markdown", Body: "hi"}},
		},
		{
			name: "unquoted heading with spaces is prose",
			text: "### docs/my notes.md\n```\nhi\n```\n",
			want: []model.SnippetBlock{},
		},
		{
			name: "inline code inside prose heading is left to the fallback",
			text: "### update `a.go` please\n```go\nx\n```\n",
			want: []model.SnippetBlock{{DeclaredPath: "a.go", LanguageHint: "go", Body: "x"}},
		},
		{
			name: "heading without fence is skipped",
			text: "### orphan.txt\nsome prose\n\n### kept.txt\n```\nok\n```\n",
			want: []model.SnippetBlock{{DeclaredPath: "kept.txt", Body: "ok"}},
		},
		{
			name: "second heading replaces pending one",
			text: "### first.txt\n### second.txt\n```\nbody\n```\n",
			want: []model.SnippetBlock{{DeclaredPath: "second.txt", Body: "body"}},
		},
		{
			name: "fence without heading is ignored",
			text: "```go\n### not/a/heading.go\n```\n",
			want: []model.SnippetBlock{},
		},
		{
			name: "unterminated fence yields nothing",
			text: "### a.go\n```go\npackage a\n",
			want: []model.SnippetBlock{},
		},
		{
			name: "four backtick fence holds triple backticks",
			text: "### README.md\n````markdown\nUsage:\n```sh\nmake\n```\n````\n",
			want: []model.SnippetBlock{{DeclaredPath: "README.md", LanguageHint: "markdown", Body: "Usage:\n```sh\nmake\n```"}},
		},
		{
			name: "lines inside body are not headings",
			text: "### a.md\n```\n### b.md\n```\n",
			want: []model.SnippetBlock{{DeclaredPath: "a.md", Body: "### b.md"}},
		},
		{
			name: "empty body",
			text: "### empty.txt\n```\n```\n",
			want: []model.SnippetBlock{{DeclaredPath: "empty.txt", Body: ""}},
		},
		{
			name: "only empty heading",
			text: "###\n```\nx\n```\n",
			want: []model.SnippetBlock{},
		},
		{
			name: "empty text",
			text: "",
			want: []model.SnippetBlock{},
		},
		{
			name: "header line is prose",
			text: "# Relevant Code\n\n### a.txt\n```\nA\n```\n",
			want: []model.SnippetBlock{{DeclaredPath: "a.txt", Body: "A"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.text))
		})
	}
}

func TestParseDuplicates(t *testing.T) {
	text := "### a.txt\n```\none\n```\n\n### b.txt\n```\nB\n```\n\n### a.txt\n```\ntwo\n```\n"

	t.Run("last wins in first seen order", func(t *testing.T) {
		got := Parse(text)
		require.Len(t, got, 2)
		assert.Equal(t, "a.txt", got[0].DeclaredPath)
		assert.Equal(t, "two", got[0].Body)
		assert.Equal(t, "b.txt", got[1].DeclaredPath)
	})

	t.Run("first wins", func(t *testing.T) {
		got := ParseWith(text, Options{Policy: FirstWins})
		require.Len(t, got, 2)
		assert.Equal(t, "one", got[0].Body)
	})
}

func TestParseRoundTrip(t *testing.T) {
	files := []model.SourceFile{
		{Path: "src/main.rs", Content: "fn main() {\n    println!(\"hi\");\n}\n"},
		{Path: "README.md", Content: "# Title\n\n```sh\nmake\n```\n"},
		{Path: "empty.txt", Content: ""},
		{Path: "no_newline.py", Content: "x = 1"},
		{Path: "blank_tail.txt", Content: "a\n\n"},
		{Path: "docs/my notes.md", Content: "spaced\n"},
		{Path: "#weird.md", Content: "hash\n"},
		{Path: "x:", Content: "colon\n"},
		{Path: "tab\tname.txt", Content: "tab\n"},
		{Path: "Makefile", Content: "all:\n\tgo build\n"},
	}

	got := Parse(format.Format(files, model.DefaultFormatOptions()))
	require.Len(t, got, len(files))
	for i, f := range files {
		assert.Equal(t, f.Path, got[i].DeclaredPath)
		assert.Equal(t, trimOneNewline(f.Content), got[i].Body, f.Path)
	}
}

func TestParseRoundTripWithHeader(t *testing.T) {
	files := []model.SourceFile{{Path: "a.go", Content: "package a\n"}}
	opts := model.DefaultFormatOptions()
	opts.Header = "# Relevant Code"

	got := Parse(format.Format(files, opts))
	require.Len(t, got, 1)
	assert.Equal(t, "package a", got[0].Body)
}

func TestParseFallsBackToMarkdown(t *testing.T) {
	text := "Update `internal/a.go` like this:\n\n```go\npackage a\n```\n\nAnd add a test:\n\n```go\n// filename: internal/a_test.go\npackage a\n```\n"

	got := Parse(text)
	require.Len(t, got, 2)
	assert.Equal(t, model.SnippetBlock{DeclaredPath: "internal/a.go", LanguageHint: "go", Body: "package a"}, got[0])
	assert.Equal(t, model.SnippetBlock{DeclaredPath: "internal/a_test.go", LanguageHint: "go", Body: "package a"}, got[1])

	assert.Empty(t, ParseWith(text, Options{NoFallback: true}))
}

func trimOneNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		return s[:len(s)-1]
	}
	return s
}
