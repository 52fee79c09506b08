package fs

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/snippy/model"
)

// GitCommand is the executable used to clone repositories.
var GitCommand = "git"

var gitURLPrefixes = []string{"git@", "https://", "http://", "git://", "ssh://", "file://"}

// IsGitURL reports whether a copy argument names a remote repository.
func IsGitURL(arg string) bool {
	for _, prefix := range gitURLPrefixes {
		if strings.HasPrefix(arg, prefix) && len(arg) > len(prefix) {
			return true
		}
	}
	return false
}

// Clone is a shallow checkout in a temporary directory.
type Clone struct {
	URL string
	Dir string
}

// Close removes the checkout.
func (c *Clone) Close() error {
	if err := os.RemoveAll(c.Dir); err != nil {
		return model.IOError(err, "removing "+c.Dir)
	}
	return nil
}

// CloneShallow clones the default branch of url at depth 1 into a fresh
// temporary directory. The caller must Close the returned Clone.
func CloneShallow(ctx context.Context, url string) (*Clone, error) {
	dir, err := os.MkdirTemp("", "snippy-clone-")
	if err != nil {
		return nil, model.IOError(err, "creating clone directory")
	}

	slog.Info("Cloning repository", "url", url)
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, GitCommand, "clone", "--quiet", "--depth", "1", "--", url, dir)
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if err := cmd.Run(); err != nil {
		_ = os.RemoveAll(dir)
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, errors.Errorf("%w: %s: %s", model.ErrClone, url, msg)
	}
	slog.Debug("Cloned repository", "url", url, "dir", dir)
	return &Clone{URL: url, Dir: dir}, nil
}
