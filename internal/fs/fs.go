package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/snippy/model"
)

// StateDir is the per-base directory holding the journal and logs.
const StateDir = ".snippy"

// reservedDirs may never be written to from clipboard content.
var reservedDirs = []string{StateDir, ".git"}

// Resolver maps declared snippet paths onto a base directory.
type Resolver struct {
	base string
}

// NewResolver creates a Resolver rooted at base, which must be an existing
// directory. An empty base means the current working directory.
func NewResolver(base string) (*Resolver, error) {
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, model.IOError(err, "getting working directory")
		}
		base = wd
	}

	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, model.IOError(err, "resolving "+base)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, model.IOError(err, "reading base directory")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%w: %s is not a directory", model.ErrIO, abs)
	}
	return &Resolver{base: abs}, nil
}

// Base returns the absolute base directory.
func (r *Resolver) Base() string {
	return r.base
}

// Resolve returns the absolute destination for a declared path. Absolute
// paths, paths escaping the base and paths inside reserved directories fail
// with ErrUnsafePath.
func (r *Resolver) Resolve(declared string) (string, error) {
	p := strings.TrimSpace(declared)
	if p == "" {
		return "", errors.Errorf("%w: empty path", model.ErrUnsafePath)
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) || filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return "", errors.Errorf("%w: %s is absolute", model.ErrUnsafePath, declared)
	}

	abs := filepath.Join(r.base, filepath.FromSlash(p))
	rel, err := r.Rel(abs)
	if err != nil {
		return "", errors.Errorf("%w: %s", model.ErrUnsafePath, declared)
	}
	if rel == "." {
		return "", errors.Errorf("%w: %s is the base directory", model.ErrUnsafePath, declared)
	}
	first, _, _ := strings.Cut(rel, "/")
	for _, dir := range reservedDirs {
		if first == dir {
			return "", errors.Errorf("%w: %s is inside %s", model.ErrUnsafePath, declared, dir)
		}
	}
	if !r.withinBaseOnDisk(abs) {
		return "", errors.Errorf("%w: %s leaves the base directory through a symlink", model.ErrUnsafePath, declared)
	}
	return abs, nil
}

// Rel returns abs relative to the base in slash form, failing when abs is
// outside of it.
func (r *Resolver) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(r.base, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errors.Errorf("%s is outside %s", abs, r.base)
	}
	return rel, nil
}

// withinBaseOnDisk checks the deepest existing ancestor of abs after
// resolving symlinks.
func (r *Resolver) withinBaseOnDisk(abs string) bool {
	realBase, err := filepath.EvalSymlinks(r.base)
	if err != nil {
		return false
	}
	dir := abs
	for {
		if _, err := os.Lstat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(realBase, resolved)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel != ".." && !strings.HasPrefix(rel, "../")
}

// FileSHA256 returns the hex SHA256 of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", model.IOError(err, "opening "+path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", model.IOError(err, "hashing "+path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
