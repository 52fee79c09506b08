package source

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/snippy/model"
)

// Clipboard reads and writes the text clipboard.
type Clipboard interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, text string) error
}

// System is the platform clipboard.
type System struct{}

var _ Clipboard = System{}

// Read returns the current clipboard text.
func (System) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if clipboard.Unsupported {
		return "", errors.Errorf("%w: no clipboard utility found", model.ErrClipboardUnavailable)
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", errors.Errorf("%w: %s", model.ErrClipboardUnavailable, err.Error())
	}
	return text, nil
}

// Write replaces the clipboard text.
func (System) Write(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if clipboard.Unsupported {
		return errors.Errorf("%w: no clipboard utility found", model.ErrClipboardUnavailable)
	}
	if err := clipboard.WriteAll(text); err != nil {
		return errors.Errorf("%w: %s", model.ErrClipboardUnavailable, err.Error())
	}
	return nil
}

// Provider determines and retrieves the input of a one-shot apply.
type Provider struct {
	clip  Clipboard
	stdin *os.File
}

// NewProvider creates a Provider reading from stdin when it is piped and
// from clip otherwise.
func NewProvider(clip Clipboard) *Provider {
	return &Provider{clip: clip, stdin: os.Stdin}
}

// NewProviderFrom is NewProvider with stdin in place of os.Stdin. A nil
// stdin always reads the clipboard.
func NewProviderFrom(clip Clipboard, stdin *os.File) *Provider {
	return &Provider{clip: clip, stdin: stdin}
}

// GetContent retrieves content from stdin (if piped) or the clipboard.
// Whitespace-only input is returned as "".
func (p *Provider) GetContent(ctx context.Context) (string, error) {
	if p.stdin != nil && isPiped(p.stdin) {
		slog.Debug("Reading from stdin")
		return readAll(p.stdin)
	}

	slog.Debug("Reading from clipboard")
	content, err := p.clip.Read(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		slog.Warn("Clipboard is empty, nothing to process")
		return "", nil
	}
	return content, nil
}

func isPiped(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice == 0
}

func readAll(r io.Reader) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", model.IOError(err, "reading stdin")
	}
	if strings.TrimSpace(string(content)) == "" {
		return "", nil
	}
	return string(content), nil
}
