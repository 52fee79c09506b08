package watch

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/snippy/model"
)

// DefaultInterval is the time between two clipboard reads.
const DefaultInterval = time.Second

// Clipboard is the read side of the system clipboard.
type Clipboard interface {
	Read(ctx context.Context) (string, error)
}

// ParseFunc recovers snippet blocks from clipboard text.
type ParseFunc func(text string) []model.SnippetBlock

// Applier persists snippet blocks.
type Applier interface {
	Apply(blocks []model.SnippetBlock) []model.ApplyResult
}

// Observer is notified of loop events. Calls happen on the loop goroutine.
type Observer interface {
	OnTick(seq uint64)
	OnChange(seq uint64, blocks []model.SnippetBlock)
	OnResults(seq uint64, results []model.ApplyResult)
	OnError(err error)
}

// Config controls a Loop.
type Config struct {
	// Interval between reads. Zero means DefaultInterval.
	Interval time.Duration
	// Header marks text produced by the copy command; such text is recorded
	// but never applied.
	Header string
	// SkipInitial records the text found on the first read as a baseline
	// without applying it.
	SkipInitial bool
	// Once performs a single read, applies it and returns. SkipInitial is
	// ignored.
	Once bool
	// MaxConsecutiveReadFailures makes Run fail once more reads than this
	// failed in a row. Zero means never.
	MaxConsecutiveReadFailures int
}

// Session is the state of one Run.
type Session struct {
	ID       string
	Started  time.Time
	Last     *model.ClipboardSnapshot
	Sequence uint64
	Batches  int
	Written  int
	Failed   int
}

// HasChanged reports whether current differs from the last seen text. A nil
// snapshot means nothing was seen yet.
func HasChanged(prev *model.ClipboardSnapshot, current string) bool {
	return prev == nil || prev.Text != current
}

// Loop polls the clipboard and applies every new text it sees.
type Loop struct {
	cfg      Config
	clip     Clipboard
	parse    ParseFunc
	applier  Applier
	observer Observer
	logger   *slog.Logger

	mu       sync.Mutex
	session  Session
	failures int
}

// Option configures a Loop.
type Option func(*Loop)

// WithObserver registers o for loop events.
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observer = o }
}

// New creates a Loop with a fresh session.
func New(cfg Config, clip Clipboard, parse ParseFunc, applier Applier, opts ...Option) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	id := uuid.NewString()
	l := &Loop{
		cfg:      cfg,
		clip:     clip,
		parse:    parse,
		applier:  applier,
		observer: nopObserver{},
		logger:   slog.Default().With("session", id),
		session:  Session{ID: id},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Session returns a copy of the current session state.
func (l *Loop) Session() Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.session
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	return s
}

// Run polls until ctx is cancelled and returns nil. The tick in progress
// when ctx is cancelled runs to completion. Run fails only when
// MaxConsecutiveReadFailures is exceeded.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	l.session.Started = time.Now()
	l.mu.Unlock()
	l.logger.Info("Watching clipboard", "interval", l.cfg.Interval.String())

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			l.logger.Info("Watch stopped", "ticks", l.Session().Sequence)
			return nil
		}
		if err := l.tick(ctx); err != nil {
			return err
		}
		if l.cfg.Once {
			return nil
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

func (l *Loop) tick(ctx context.Context) error {
	l.mu.Lock()
	l.session.Sequence++
	seq := l.session.Sequence
	l.mu.Unlock()
	l.observer.OnTick(seq)

	// A tick that has started runs to completion even if ctx is cancelled.
	text, err := l.clip.Read(context.WithoutCancel(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		l.failures++
		l.logger.Warn("Clipboard read failed", "seq", seq, "failures", l.failures, "err", err)
		l.observer.OnError(err)
		if limit := l.cfg.MaxConsecutiveReadFailures; limit > 0 && l.failures > limit {
			return errors.Errorf("%w: %d consecutive read failures", model.ErrClipboardUnavailable, l.failures)
		}
		return nil
	}
	l.failures = 0

	l.mu.Lock()
	firstObservation := l.session.Last == nil
	changed := HasChanged(l.session.Last, text)
	if changed {
		l.session.Last = &model.ClipboardSnapshot{Text: text, ObservedAtSequence: seq}
	}
	l.mu.Unlock()
	if !changed {
		return nil
	}

	switch {
	case firstObservation && l.cfg.SkipInitial && !l.cfg.Once:
		l.logger.Debug("Recorded baseline clipboard text", "seq", seq, "bytes", len(text))
		return nil
	case l.cfg.Header != "" && strings.HasPrefix(text, l.cfg.Header):
		l.logger.Debug("Skipping text produced by copy", "seq", seq)
		return nil
	}

	blocks := l.parse(text)
	l.logger.Debug("Clipboard changed", "seq", seq, "blocks", len(blocks))
	l.observer.OnChange(seq, blocks)
	if len(blocks) == 0 {
		return nil
	}

	results := l.applier.Apply(blocks)
	written := 0
	for _, r := range results {
		if r.Written() {
			written++
		}
	}
	l.mu.Lock()
	l.session.Batches++
	l.session.Written += written
	l.session.Failed += len(results) - written
	l.mu.Unlock()

	l.logger.Info("Applied clipboard batch", "seq", seq, "written", written, "failed", len(results)-written)
	l.observer.OnResults(seq, results)
	return nil
}

type nopObserver struct{}

func (nopObserver) OnTick(uint64)                         {}
func (nopObserver) OnChange(uint64, []model.SnippetBlock) {}
func (nopObserver) OnResults(uint64, []model.ApplyResult) {}
func (nopObserver) OnError(error)                         {}
