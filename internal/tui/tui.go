package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/snippy/model"
)

// maxRecent is the number of result lines kept on screen.
const maxRecent = 10

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	pathStyle    = lipgloss.NewStyle()
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// --- Messages ---
type tickMsg struct{ seq uint64 }

type changeMsg struct {
	seq    uint64
	blocks int
}

type resultsMsg struct {
	seq     uint64
	results []model.ApplyResult
}

type errorMsg struct{ err error }

func (e errorMsg) Error() string { return e.err.Error() }

// StoppedMsg tells the model that the watch loop returned.
type StoppedMsg struct{ Err error }

// Info describes the session shown in the header.
type Info struct {
	Session  string
	Base     string
	Interval time.Duration
}

// --- Model ---
type Model struct {
	info    Info
	spinner spinner.Model
	state   state
	seq     uint64
	recent  []string
	summary model.Summary
	lastErr error
	err     error
}

type state int

const (
	stateWatching state = iota
	stateSummary
	stateError
)

func New(info Info) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		info:    info,
		spinner: s,
		state:   stateWatching,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.state = stateSummary
			return m, tea.Quit
		}

	case tickMsg:
		m.seq = msg.seq

	case changeMsg:
		if msg.blocks == 0 {
			m.push(faintStyle.Render(fmt.Sprintf("[%d] clipboard changed, no file blocks", msg.seq)))
		}

	case resultsMsg:
		for _, r := range msg.results {
			m.push(resultLine(r))
		}
		s := model.Summarize(msg.results)
		m.summary.Created = append(m.summary.Created, s.Created...)
		m.summary.Modified = append(m.summary.Modified, s.Modified...)
		m.summary.Failed = append(m.summary.Failed, s.Failed...)
		m.lastErr = nil

	case errorMsg:
		m.lastErr = msg

	case StoppedMsg:
		if msg.Err != nil {
			m.state = stateError
			m.err = msg.Err
		} else {
			m.state = stateSummary
		}
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateWatching {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m *Model) push(line string) {
	m.recent = append(m.recent, line)
	if len(m.recent) > maxRecent {
		m.recent = m.recent[len(m.recent)-maxRecent:]
	}
}

func resultLine(r model.ApplyResult) string {
	switch {
	case !r.Written():
		return errorStyle.Render("failed: ") + pathStyle.Render(r.Path) + faintStyle.Render(" — "+model.ReasonText(r.Reason))
	case r.Action == model.ActionCreate:
		return successStyle.Render("created ") + pathStyle.Render(r.Path)
	default:
		return successStyle.Render("wrote ") + pathStyle.Render(r.Path)
	}
}

func (m Model) View() string {
	switch m.state {
	case stateWatching:
		return m.renderWatching()
	case stateError:
		return errorStyle.Render("Error: ", m.err.Error()) + "\n"
	case stateSummary:
		return m.renderSummary()
	default:
		return ""
	}
}

func (m Model) renderWatching() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("snippy watch"))
	b.WriteString(faintStyle.Render(fmt.Sprintf("  %s  every %s  session %s", m.info.Base, m.info.Interval, shortID(m.info.Session))))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s Watching clipboard (poll %d)\n\n", m.spinner.View(), m.seq)

	if len(m.recent) == 0 {
		b.WriteString(faintStyle.Render("Nothing applied yet."))
		b.WriteString("\n")
	}
	for _, line := range m.recent {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("warning: " + m.lastErr.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(faintStyle.Render("q: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderSummary() string {
	var b strings.Builder

	if m.summary.Message != "" {
		b.WriteString(headerStyle.Render(m.summary.Message))
		b.WriteString("\n\n")
	}

	hasContent := false
	section := func(title string, style lipgloss.Style, paths []string) {
		if len(paths) == 0 {
			return
		}
		hasContent = true
		b.WriteString(style.Render(title))
		b.WriteString("\n")
		for _, f := range paths {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(f)))
		}
	}
	section("Created:", successStyle, m.summary.Created)
	section("Modified:", successStyle, m.summary.Modified)
	section("Failed:", errorStyle, m.summary.Failed)

	if !hasContent && m.summary.Message == "" {
		b.WriteString(faintStyle.Render("Nothing applied."))
		b.WriteString("\n")
	}

	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Sender delivers messages to a running program.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards watch loop events to a bubbletea program.
type Bridge struct {
	p Sender
}

// NewBridge creates a Bridge sending to p, typically a *tea.Program. p may
// be nil when the program is attached later, before the loop runs.
func NewBridge(p Sender) *Bridge {
	return &Bridge{p: p}
}

// Attach sets the program events are sent to.
func (b *Bridge) Attach(p Sender) { b.p = p }

func (b *Bridge) OnTick(seq uint64) { b.p.Send(tickMsg{seq: seq}) }

func (b *Bridge) OnChange(seq uint64, blocks []model.SnippetBlock) {
	b.p.Send(changeMsg{seq: seq, blocks: len(blocks)})
}

func (b *Bridge) OnResults(seq uint64, results []model.ApplyResult) {
	b.p.Send(resultsMsg{seq: seq, results: results})
}

func (b *Bridge) OnError(err error) { b.p.Send(errorMsg{err: err}) }
