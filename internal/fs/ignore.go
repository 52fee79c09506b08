package fs

import (
	"log/slog"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIgnorePatterns skips build output, dependency trees, lock files
// and VCS metadata.
var DefaultIgnorePatterns = []string{
	".git/**",
	StateDir + "/**",
	"target/**",
	"node_modules/**",
	"**/*.pyc",
	"**/__pycache__/**",
	".DS_Store",
	"Cargo.lock",
	"package-lock.json",
	"pnpm-lock.yaml",
	"yarn.lock",
	"uv.lock",
	"dist/**",
	"build/**",
	".venv/**",
	".ruff_cache/**",
	".pytest_cache/**",
	".mypy_cache/**",
	".idea/**",
	".env",
	"Gemfile.lock",
	"vendor/**",
	".bundle/**",
	"**/*.class",
	".gradle/**",
	"**/bin/**",
	"**/obj/**",
	"composer.lock",
	"go.sum",
}

// IgnoreMatcher matches slash-separated paths, relative to the base
// directory, against doublestar patterns. Patterns without a slash also
// match the base name at any depth.
type IgnoreMatcher struct {
	patterns []string
}

// NewIgnoreMatcher compiles patterns. Invalid patterns are logged and
// dropped.
func NewIgnoreMatcher(patterns ...string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = strings.TrimPrefix(p, "./")
		if !doublestar.ValidatePattern(p) {
			slog.Warn("Invalid ignore pattern", "pattern", p)
			continue
		}
		m.patterns = append(m.patterns, p)
	}
	return m
}

// DefaultIgnoreMatcher returns a matcher for DefaultIgnorePatterns plus extra.
func DefaultIgnoreMatcher(extra ...string) *IgnoreMatcher {
	all := make([]string, 0, len(DefaultIgnorePatterns)+len(extra))
	all = append(all, DefaultIgnorePatterns...)
	all = append(all, extra...)
	return NewIgnoreMatcher(all...)
}

// Patterns returns the compiled patterns in order.
func (m *IgnoreMatcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}

// Match reports whether rel is ignored.
func (m *IgnoreMatcher) Match(rel string) bool {
	if m == nil {
		return false
	}
	rel = strings.TrimPrefix(path.Clean(strings.ReplaceAll(rel, `\`, "/")), "./")
	base := path.Base(rel)
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if !strings.Contains(p, "/") {
			if ok, _ := doublestar.Match(p, base); ok {
				return true
			}
		}
	}
	return false
}
