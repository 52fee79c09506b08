package nvim

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/neovim/go-client/nvim"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/snippy/internal/fs"
	"github.com/sokinpui/snippy/model"
)

// EnvListenAddress names the socket of the Neovim instance to notify.
const EnvListenAddress = "NVIM_LISTEN_ADDRESS"

type commander interface {
	Command(cmd string) error
	Close() error
}

// Reloader asks a running Neovim to re-read buffers after files were
// written on disk. It implements fs.Hook.
type Reloader struct {
	nvim commander
}

var _ fs.Hook = (*Reloader)(nil)

// Dial connects to the Neovim listening on addr. An empty addr falls back
// to $NVIM_LISTEN_ADDRESS.
func Dial(addr string) (*Reloader, error) {
	if addr == "" {
		addr = os.Getenv(EnvListenAddress)
	}
	if addr == "" {
		return nil, errors.Errorf("no neovim address: set --nvim or $%s", EnvListenAddress)
	}
	v, err := nvim.Dial(addr)
	if err != nil {
		return nil, errors.Errorf("connecting to neovim at %s: %w", addr, err)
	}
	return &Reloader{nvim: v}, nil
}

// Close disconnects from Neovim.
func (r *Reloader) Close() error {
	if r.nvim == nil {
		return nil
	}
	return r.nvim.Close()
}

// BeforeWrite implements fs.Hook.
func (r *Reloader) BeforeWrite(string, model.FileAction) error { return nil }

// AfterBatch reloads the loaded buffers of every written file.
func (r *Reloader) AfterBatch(results []model.ApplyResult) {
	var written []model.ApplyResult
	for _, res := range results {
		if res.Written() {
			written = append(written, res)
		}
	}
	reloaded, failed := r.Reload(written, nil)
	if len(failed) > 0 {
		slog.Warn("Neovim did not reload some buffers", "paths", failed)
	}
	slog.Debug("Reloaded neovim buffers", "count", len(reloaded))
}

// Reload runs checktime for each result's buffer if Neovim has it loaded.
func (r *Reloader) Reload(results []model.ApplyResult, progressCb func(int)) (reloaded, failed []string) {
	processFn := func(res model.ApplyResult) (string, bool) {
		q := vimQuote(res.AbsPath)
		cmd := fmt.Sprintf("if bufloaded(%s) | execute 'checktime ' . bufnr(%s) | endif", q, q)
		return res.Path, r.nvim.Command(cmd) == nil
	}
	return processSequentially(results, processFn, progressCb)
}

func vimQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// processSequentially runs processFn for each item in order.
func processSequentially[T any](
	items []T,
	processFn func(item T) (path string, success bool),
	progressCb func(int),
) (succeeded, failed []string) {
	for i, item := range items {
		path, success := processFn(item)
		if success {
			succeeded = append(succeeded, path)
		} else {
			failed = append(failed, path)
		}
		if progressCb != nil {
			progressCb(i + 1)
		}
	}
	return succeeded, failed
}
