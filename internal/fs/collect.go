package fs

import (
	"bytes"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/snippy/model"
)

// Collector expands copy arguments (files, directories and doublestar
// globs) into source files.
type Collector struct {
	base   string
	ignore *IgnoreMatcher
}

// NewCollector creates a Collector. Relative arguments and returned paths
// are relative to base.
func NewCollector(base string, ignore *IgnoreMatcher) *Collector {
	return &Collector{base: base, ignore: ignore}
}

// Collect returns the files named by args in argument order, each file
// once. Directories are walked in lexical order. An empty args list means
// the base directory. Named files that do not exist fail with ErrIO; binary
// files are skipped.
func (c *Collector) Collect(args []string) ([]model.SourceFile, error) {
	if len(args) == 0 {
		args = []string{"."}
	}

	var paths []string
	seen := make(map[string]struct{})
	add := func(abs string) {
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		paths = append(paths, abs)
	}

	for _, arg := range args {
		if err := c.expand(arg, add); err != nil {
			return nil, err
		}
	}

	files := make([]model.SourceFile, 0, len(paths))
	for _, abs := range paths {
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, model.IOError(err, "reading "+abs)
		}
		if isBinary(data) {
			slog.Debug("Skipping binary file", "path", abs)
			continue
		}
		files = append(files, model.SourceFile{Path: c.display(abs), Content: string(data)})
	}
	return files, nil
}

func (c *Collector) expand(arg string, add func(string)) error {
	p := arg
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.base, p)
	}

	if hasMeta(arg) {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return errors.Errorf("invalid pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			slog.Warn("Pattern matched no files", "pattern", arg)
		}
		for _, m := range matches {
			if c.ignored(m) {
				continue
			}
			if err := c.expandPath(m, add); err != nil {
				return err
			}
		}
		return nil
	}

	info, err := os.Stat(p)
	if err != nil {
		return model.IOError(err, "reading "+arg)
	}
	if !info.IsDir() {
		add(p)
		return nil
	}
	return c.walk(p, add)
}

func (c *Collector) expandPath(p string, add func(string)) error {
	info, err := os.Stat(p)
	if err != nil {
		return model.IOError(err, "reading "+p)
	}
	if info.IsDir() {
		return c.walk(p, add)
	}
	if info.Mode().IsRegular() {
		add(p)
	}
	return nil
}

func (c *Collector) walk(root string, add func(string)) error {
	err := filepath.WalkDir(root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != root && c.ignored(p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			add(p)
		}
		return nil
	})
	if err != nil {
		return model.IOError(err, "walking "+root)
	}
	return nil
}

func (c *Collector) ignored(abs string) bool {
	rel, err := filepath.Rel(c.base, abs)
	if err != nil {
		return false
	}
	return c.ignore.Match(filepath.ToSlash(rel))
}

// display returns abs relative to the base in slash form, or abs itself
// when it lies outside the base.
func (c *Collector) display(abs string) string {
	rel, err := filepath.Rel(c.base, abs)
	if err != nil {
		return abs
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return filepath.ToSlash(abs)
	}
	return rel
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

func isBinary(data []byte) bool {
	head := data
	if len(head) > 8000 {
		head = head[:8000]
	}
	return bytes.IndexByte(head, 0) >= 0 || !utf8.Valid(data)
}
