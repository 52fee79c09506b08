package snippy

import (
	"github.com/sokinpui/snippy/cli"
	"github.com/sokinpui/snippy/internal/parser"
)

// Config for using snippy as a library.
type Config struct {
	// Directory the declared paths are relative to. Empty means the working directory.
	Base string
	// Doublestar patterns of paths that must not be written.
	Ignore []string
	// Never replace existing files.
	NoOverwrite bool
	// Keep the first block of a path that appears twice.
	FirstWins bool
	// Do not record the batch for undo.
	NoJournal bool
}

func (c Config) target() cli.TargetConfig {
	base := c.Base
	if base == "" {
		base = "."
	}
	return cli.TargetConfig{
		Base:        base,
		Ignore:      c.Ignore,
		NoOverwrite: c.NoOverwrite,
		FirstWins:   c.FirstWins,
		NoJournal:   c.NoJournal,
	}
}

// Parse returns the content of every file block in content, keyed by its
// declared path.
func Parse(content string, config Config) map[string]string {
	opts := parser.Options{Policy: parser.LastWins}
	if config.FirstWins {
		opts.Policy = parser.FirstWins
	}
	changes := make(map[string]string)
	for _, b := range parser.ParseWith(content, opts) {
		changes[b.DeclaredPath] = b.Body
	}
	return changes
}

// Apply parses the given content string and writes its file blocks.
// It returns a summary of the operations in a map.
func Apply(content string, config Config) (result map[string][]string, err error) {
	defer recoverPanic(&err)

	t, err := New().newTarget(config.target())
	if err != nil {
		return nil, err
	}
	defer t.Close()

	summary := applyContent(t, content)
	return map[string][]string{
		"Created":  summary.Created,
		"Modified": summary.Modified,
		"Failed":   summary.Failed,
	}, nil
}
