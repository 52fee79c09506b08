package snippy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"gitlab.com/tozd/go/errors"

	"github.com/sokinpui/snippy/cli"
	"github.com/sokinpui/snippy/internal/format"
	"github.com/sokinpui/snippy/internal/fs"
	"github.com/sokinpui/snippy/internal/logging"
	"github.com/sokinpui/snippy/internal/nvim"
	"github.com/sokinpui/snippy/internal/parser"
	"github.com/sokinpui/snippy/internal/source"
	"github.com/sokinpui/snippy/internal/state"
	"github.com/sokinpui/snippy/internal/tui"
	"github.com/sokinpui/snippy/internal/ui"
	"github.com/sokinpui/snippy/internal/watch"
	"github.com/sokinpui/snippy/model"
)

// watchLogFile receives the logs of a TUI watch session, relative to the
// state directory.
const watchLogFile = "watch.log"

// App orchestrates the entire application logic.
type App struct {
	clip     source.Clipboard
	stdin    *os.File
	stdout   io.Writer
	stderr   io.Writer
	logLevel slog.Level
	tty      bool
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

// Option configures an App.
type Option func(*App)

// WithClipboard replaces the system clipboard.
func WithClipboard(c source.Clipboard) Option {
	return func(a *App) { a.clip = c }
}

// WithStdin sets where apply reads piped input from. Nil disables stdin.
func WithStdin(f *os.File) Option {
	return func(a *App) { a.stdin = f }
}

// WithOutput sets where copied text (stdout) and operator lines (stderr)
// are written.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *App) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

// WithLogLevel sets the level of the log file used while the watch TUI owns
// the terminal.
func WithLogLevel(l slog.Level) Option {
	return func(a *App) { a.logLevel = l }
}

// New creates a new App instance.
func New(opts ...Option) *App {
	a := &App{
		clip:     source.System{},
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		logLevel: slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.tty = logging.IsTTY(a.stderr)
	return a
}

// recoverPanic turns a panic into a DetailedError. It must be deferred.
func recoverPanic(err *error) {
	if r := recover(); r != nil {
		*err = &DetailedError{
			Err:   errors.Errorf("internal panic: %v", r),
			Stack: debug.Stack(),
		}
	}
}

// Copy renders the files named by cfg and puts the text on the clipboard,
// or on stdout with cfg.Stdout. It returns the rendered text. When the first
// path is a repository URL, the remaining paths are taken from a shallow
// clone of it, which is removed afterwards.
func (a *App) Copy(ctx context.Context, cfg *cli.CopyConfig) (text string, err error) {
	defer recoverPanic(&err)

	base, paths := ".", cfg.Paths
	if len(paths) > 0 && fs.IsGitURL(paths[0]) {
		clone, err := fs.CloneShallow(ctx, paths[0])
		if err != nil {
			return "", err
		}
		defer func() {
			if err := clone.Close(); err != nil {
				slog.Warn("Could not remove clone", "dir", clone.Dir, "err", err)
			}
		}()
		base, paths = clone.Dir, paths[1:]
	}

	collector := fs.NewCollector(base, fs.DefaultIgnoreMatcher(cfg.Ignore...))
	files, err := collector.Collect(paths)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		ui.WarningColor.Fprintln(a.stderr, "No files matched. Nothing copied.")
		return "", nil
	}

	text = format.Format(files, cfg.FormatOptions())
	if cfg.Stdout {
		if _, err := io.WriteString(a.stdout, text); err != nil {
			return "", model.IOError(err, "writing stdout")
		}
	} else {
		if err := a.clip.Write(ctx, text); err != nil {
			return "", err
		}
		ui.SuccessColor.Fprintf(a.stderr, "Copied %d file(s) to clipboard\n", len(files))
	}

	if !cfg.NoStats {
		fmt.Fprintln(a.stderr, ui.StatsTable(ui.Stats(files)))
	}
	slog.Debug("Copied files", "files", len(files), "bytes", len(text))
	return text, nil
}

// target is the write side shared by apply and watch.
type target struct {
	applier  *fs.Applier
	parse    watch.ParseFunc
	journal  *state.Journal
	reloader *nvim.Reloader
}

func (t *target) Close() {
	if t.reloader != nil {
		if err := t.reloader.Close(); err != nil {
			slog.Debug("Closing neovim connection", "err", err)
		}
	}
}

func (a *App) newTarget(cfg cli.TargetConfig) (*target, error) {
	resolver, err := fs.NewResolver(cfg.Base)
	if err != nil {
		return nil, err
	}
	t := &target{}

	var hooks []fs.Hook
	if !cfg.NoJournal {
		t.journal, err = state.Open(resolver.Base())
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, t.journal)
	}
	if cfg.Nvim != "" || os.Getenv(nvim.EnvListenAddress) != "" {
		t.reloader, err = nvim.Dial(cfg.Nvim)
		if err != nil {
			slog.Warn("Neovim buffers will not be reloaded", "err", err)
		} else {
			hooks = append(hooks, t.reloader)
		}
	}

	policy := fs.OverwriteAlways
	if cfg.NoOverwrite {
		policy = fs.OverwriteNever
	}
	var ignore *fs.IgnoreMatcher
	if len(cfg.Ignore) > 0 {
		ignore = fs.NewIgnoreMatcher(cfg.Ignore...)
	}
	t.applier = fs.NewApplier(resolver,
		fs.WithIgnore(ignore),
		fs.WithOverwritePolicy(policy),
		fs.WithHooks(hooks...),
	)

	opts := parser.Options{Policy: parser.LastWins}
	if cfg.FirstWins {
		opts.Policy = parser.FirstWins
	}
	t.parse = func(text string) []model.SnippetBlock {
		return parser.ParseWith(text, opts)
	}
	return t, nil
}

// Apply reads piped stdin or the clipboard once and writes every file block
// it holds below cfg.Base.
func (a *App) Apply(ctx context.Context, cfg cli.TargetConfig) (summary model.Summary, err error) {
	defer recoverPanic(&err)

	t, err := a.newTarget(cfg)
	if err != nil {
		return model.Summary{}, err
	}
	defer t.Close()

	content, err := source.NewProviderFrom(a.clip, a.stdin).GetContent(ctx)
	if err != nil {
		return model.Summary{}, err
	}
	if content == "" {
		return model.Summary{Message: "Source is empty. Nothing to process."}, nil
	}
	return applyContent(t, content), nil
}

func applyContent(t *target, content string) model.Summary {
	blocks := t.parse(content)
	if len(blocks) == 0 {
		return model.Summary{Message: "No file blocks found. Nothing to do."}
	}
	return model.Summarize(t.applier.Apply(blocks))
}

// Watch polls the clipboard until ctx is cancelled, the operator quits the
// TUI, or, with cfg.Once, after a single read.
func (a *App) Watch(ctx context.Context, cfg *cli.WatchConfig) (summary model.Summary, err error) {
	defer recoverPanic(&err)

	t, err := a.newTarget(cfg.TargetConfig)
	if err != nil {
		return model.Summary{}, err
	}
	defer t.Close()

	loopCfg := watch.Config{
		Interval:                   cfg.Interval,
		Header:                     cfg.Header,
		SkipInitial:                cfg.SkipInitial,
		Once:                       cfg.Once,
		MaxConsecutiveReadFailures: cfg.MaxReadFailures,
	}

	var loop *watch.Loop
	if cfg.NoTUI || cfg.Once || !a.tty {
		reporter := ui.NewReporter(a.stderr)
		loop = watch.New(loopCfg, a.clip, t.parse, t.applier, watch.WithObserver(reporter))
		reporter.OnStart(loop.Session().ID, t.applier.Base())
		err = loop.Run(ctx)
	} else {
		loop, err = a.watchTUI(ctx, loopCfg, t)
	}
	if err != nil {
		return model.Summary{}, err
	}

	s := loop.Session()
	return model.Summary{
		Message: fmt.Sprintf("Session %s: %d batch(es), %d file(s) written, %d failed.", s.ID, s.Batches, s.Written, s.Failed),
	}, nil
}

// watchTUI runs the loop on a background goroutine while the bubbletea
// program owns the terminal. Logs go to the state directory meanwhile.
func (a *App) watchTUI(ctx context.Context, cfg watch.Config, t *target) (*watch.Loop, error) {
	logPath := filepath.Join(t.applier.Base(), fs.StateDir, watchLogFile)
	prevLogger := slog.Default()
	closeLog, err := logging.SetupFile(logPath, a.logLevel)
	if err != nil {
		return nil, err
	}
	defer func() {
		slog.SetDefault(prevLogger)
		if err := closeLog(); err != nil {
			slog.Debug("Closing log file", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bridge := tui.NewBridge(nil)
	loop := watch.New(cfg, a.clip, t.parse, t.applier, watch.WithObserver(bridge))
	p := tea.NewProgram(tui.New(tui.Info{
		Session:  loop.Session().ID,
		Base:     t.applier.Base(),
		Interval: cfg.Interval,
	}), tea.WithOutput(a.stderr))
	bridge.Attach(p)

	done := make(chan error, 1)
	go func() {
		err := loop.Run(ctx)
		p.Send(tui.StoppedMsg{Err: err})
		done <- err
	}()

	_, runErr := p.Run()
	// Quitting the program stops the loop; the tick in flight completes.
	cancel()
	loopErr := <-done

	if runErr != nil {
		return nil, errors.Errorf("running watch view: %w", runErr)
	}
	return loop, loopErr
}

// Undo reverts the most recent batch applied below cfg.Base.
func (a *App) Undo(ctx context.Context, cfg *cli.UndoConfig) (summary model.Summary, err error) {
	defer recoverPanic(&err)

	if err := ctx.Err(); err != nil {
		return model.Summary{}, err
	}
	resolver, err := fs.NewResolver(cfg.Base)
	if err != nil {
		return model.Summary{}, err
	}
	journal, err := state.Open(resolver.Base())
	if err != nil {
		return model.Summary{}, err
	}

	results, err := journal.Undo(cfg.Force)
	if errors.Is(err, model.ErrNothingToUndo) {
		return model.Summary{Message: "No operation to undo."}, nil
	}
	if err != nil && results == nil {
		return model.Summary{}, err
	}

	if os.Getenv(nvim.EnvListenAddress) != "" {
		if reloader, dialErr := nvim.Dial(""); dialErr == nil {
			reloader.AfterBatch(results)
			_ = reloader.Close()
		}
	}

	for _, r := range results {
		if r.Written() {
			summary.Modified = append(summary.Modified, r.Path)
		} else {
			summary.Failed = append(summary.Failed, r.Path)
			slog.Warn("Could not revert file", "path", r.Path, "err", r.Reason)
		}
	}
	summary.Message = "Undid last operation."
	return summary, err
}
