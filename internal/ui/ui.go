package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/sokinpui/snippy/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
)

// Info prints an informational line to stderr.
func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(os.Stderr, format+"\n", a...)
}

// Reporter prints operator-facing result lines. It satisfies the watch
// loop's observer interface.
type Reporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewReporter creates a Reporter writing to w, or stderr when w is nil.
func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = os.Stderr
	}
	return &Reporter{w: w}
}

// Result prints one line per apply result.
func (r *Reporter) Result(res model.ApplyResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result(res)
}

func (r *Reporter) result(res model.ApplyResult) {
	switch {
	case !res.Written():
		ErrorColor.Fprint(r.w, "failed: ")
		PathColor.Fprint(r.w, res.Path)
		fmt.Fprintf(r.w, " — %s\n", model.ReasonText(res.Reason))
	case res.Action == model.ActionCreate:
		SuccessColor.Fprint(r.w, "created ")
		fmt.Fprintln(r.w, res.Path)
	default:
		SuccessColor.Fprint(r.w, "wrote ")
		fmt.Fprintln(r.w, res.Path)
	}
}

// OnStart announces the watched directory.
func (r *Reporter) OnStart(session, base string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	HeaderColor.Fprintf(r.w, "Watching clipboard for %s\n", base)
	InfoColor.Fprintf(r.w, "session %s, press Ctrl+C to stop\n", session)
}

// OnTick implements the observer interface; ticks are not printed.
func (r *Reporter) OnTick(uint64) {}

// OnChange prints how many blocks a new clipboard text held.
func (r *Reporter) OnChange(seq uint64, blocks []model.SnippetBlock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(blocks) == 0 {
		InfoColor.Fprintf(r.w, "[%d] clipboard changed, no file blocks found\n", seq)
		return
	}
	InfoColor.Fprintf(r.w, "[%d] clipboard changed, %d file block(s)\n", seq, len(blocks))
}

// OnResults prints the result of every block of a batch.
func (r *Reporter) OnResults(_ uint64, results []model.ApplyResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range results {
		r.result(res)
	}
}

// OnError prints a failed tick.
func (r *Reporter) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	WarningColor.Fprintf(r.w, "warning: %v\n", err)
}

// PrintUpdateSummary prints the grouped outcome of an apply.
func (r *Reporter) PrintUpdateSummary(s model.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	HeaderColor.Fprintln(r.w, "\n--- Update Summary ---")

	if len(s.Created) == 0 && len(s.Modified) == 0 && len(s.Failed) == 0 {
		InfoColor.Fprintln(r.w, "No files were updated.")
		return
	}
	r.list(SuccessColor, "Modified %d file(s):", s.Modified)
	r.list(SuccessColor, "Created %d new file(s):", s.Created)
	r.list(ErrorColor, "Failed to process %d file(s):", s.Failed)
}

// PrintRevertSummary prints the outcome of an undo.
func (r *Reporter) PrintRevertSummary(reverted, failed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	HeaderColor.Fprintln(r.w, "\n--- Revert Summary ---")
	r.list(SuccessColor, "Successfully reverted %d file(s):", reverted)
	r.list(ErrorColor, "Failed to revert %d file(s):", failed)
}

func (r *Reporter) list(c *color.Color, title string, paths []string) {
	if len(paths) == 0 {
		return
	}
	c.Fprintf(r.w, title+"\n", len(paths))
	for _, p := range paths {
		fmt.Fprintf(r.w, "  - %s\n", p)
	}
}
