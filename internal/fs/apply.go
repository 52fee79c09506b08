package fs

import (
	"log/slog"
	"os"
	"path/filepath"

	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/snippy/model"
)

// OverwritePolicy decides what happens when a destination already exists.
type OverwritePolicy int

const (
	// OverwriteAlways replaces existing files.
	OverwriteAlways OverwritePolicy = iota
	// OverwriteNever leaves existing files untouched and reports ErrExists.
	OverwriteNever
)

const (
	dirMode     os.FileMode = 0o755
	newFileMode os.FileMode = 0o644
)

// Hook observes the writes of an Applier.
type Hook interface {
	// BeforeWrite is called before abs is replaced. An error aborts the write
	// of that file only.
	BeforeWrite(abs string, action model.FileAction) error
	// AfterBatch receives the results of one Apply call.
	AfterBatch(results []model.ApplyResult)
}

// Applier writes snippet bodies below a base directory.
type Applier struct {
	resolver *Resolver
	ignore   *IgnoreMatcher
	policy   OverwritePolicy
	hooks    []Hook
}

// ApplierOption configures an Applier.
type ApplierOption func(*Applier)

// WithIgnore rejects paths matched by m with ErrIgnored.
func WithIgnore(m *IgnoreMatcher) ApplierOption {
	return func(a *Applier) { a.ignore = m }
}

// WithOverwritePolicy sets the policy for existing destinations.
func WithOverwritePolicy(p OverwritePolicy) ApplierOption {
	return func(a *Applier) { a.policy = p }
}

// WithHooks registers hooks, called in order.
func WithHooks(hooks ...Hook) ApplierOption {
	return func(a *Applier) { a.hooks = append(a.hooks, hooks...) }
}

// NewApplier creates an Applier writing below r's base directory.
func NewApplier(r *Resolver, opts ...ApplierOption) *Applier {
	a := &Applier{resolver: r}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Base returns the absolute base directory.
func (a *Applier) Base() string {
	return a.resolver.Base()
}

// Apply writes each block and returns one result per block, in order. A
// failing block never stops the remaining ones.
func (a *Applier) Apply(blocks []model.SnippetBlock) []model.ApplyResult {
	results := make([]model.ApplyResult, 0, len(blocks))
	for _, b := range blocks {
		r := a.applyOne(b)
		if r.Written() {
			slog.Info("Wrote file", "path", r.Path, "action", string(r.Action))
		} else {
			slog.Warn("Failed to write file", "path", r.Path, "err", r.Reason)
		}
		results = append(results, r)
	}
	for _, h := range a.hooks {
		h.AfterBatch(results)
	}
	return results
}

func (a *Applier) applyOne(b model.SnippetBlock) model.ApplyResult {
	res := model.ApplyResult{Path: b.DeclaredPath, Status: model.StatusFailed}

	abs, err := a.resolver.Resolve(b.DeclaredPath)
	if err != nil {
		res.Reason = err
		return res
	}
	res.AbsPath = abs

	if rel, err := a.resolver.Rel(abs); err == nil && a.ignore.Match(rel) {
		res.Reason = errors.Errorf("%w: %s", model.ErrIgnored, b.DeclaredPath)
		return res
	}

	mode := newFileMode
	res.Action = model.ActionCreate
	info, err := os.Stat(abs)
	switch {
	case err == nil && info.IsDir():
		res.Reason = errors.Errorf("%w: %s is a directory", model.ErrIO, b.DeclaredPath)
		return res
	case err == nil:
		if a.policy == OverwriteNever {
			res.Reason = errors.Errorf("%w: %s", model.ErrExists, b.DeclaredPath)
			return res
		}
		res.Action = model.ActionModify
		mode = info.Mode().Perm()
	case !os.IsNotExist(err):
		res.Reason = model.IOError(err, "stat "+b.DeclaredPath)
		return res
	}

	for _, h := range a.hooks {
		if err := h.BeforeWrite(abs, res.Action); err != nil {
			res.Reason = err
			return res
		}
	}

	if err := os.MkdirAll(filepath.Dir(abs), dirMode); err != nil {
		res.Reason = model.IOError(err, "creating parent directories")
		return res
	}
	if err := WriteFileAtomic(abs, []byte(withTrailingNewline(b.Body)), mode); err != nil {
		res.Reason = err
		return res
	}

	res.Status = model.StatusWritten
	return res
}

func withTrailingNewline(body string) string {
	if body == "" {
		return ""
	}
	return body + "\n"
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so path either keeps its old content or holds all of data.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".snippy-*")
	if err != nil {
		return model.IOError(err, "creating temporary file")
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return model.IOError(err, "writing "+path)
	}
	if err = tmp.Chmod(mode); err != nil {
		return model.IOError(err, "setting mode of "+path)
	}
	if err = tmp.Sync(); err != nil {
		return model.IOError(err, "syncing "+path)
	}
	if err = tmp.Close(); err != nil {
		return model.IOError(err, "closing "+path)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return model.IOError(err, "replacing "+path)
	}
	return nil
}
