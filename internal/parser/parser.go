package parser

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/sokinpui/snippy/model"
)

// DuplicatePolicy decides which body is kept when a path is declared twice.
type DuplicatePolicy int

const (
	// LastWins keeps the body of the last block for a path.
	LastWins DuplicatePolicy = iota
	// FirstWins keeps the body of the first block for a path.
	FirstWins
)

// Options configures parsing.
type Options struct {
	Policy DuplicatePolicy
	// NoFallback disables the markdown AST recognizer that runs when the
	// heading/fence scanner finds nothing.
	NoFallback bool
}

type state int

const (
	seekingHeading state = iota
	seekingFenceOpen
	inFenceBody
)

func (s state) String() string {
	switch s {
	case seekingHeading:
		return "SeekingHeading"
	case seekingFenceOpen:
		return "SeekingFenceOpen"
	case inFenceBody:
		return "InFenceBody"
	default:
		return "Unknown"
	}
}

// Parse recovers (path, body) blocks from text using the default options.
func Parse(text string) []model.SnippetBlock {
	return ParseWith(text, Options{})
}

// ParseWith recovers (path, body) blocks from text. It never fails: text that
// contains no recognizable block yields an empty slice.
func ParseWith(text string, opts Options) []model.SnippetBlock {
	blocks := scan(text, opts.Policy)
	if len(blocks) == 0 && !opts.NoFallback {
		blocks = ExtractMarkdown([]byte(text), opts)
		if len(blocks) > 0 {
			slog.Debug("Recovered blocks with markdown fallback", "count", len(blocks))
		}
	}
	if blocks == nil {
		blocks = []model.SnippetBlock{}
	}
	return blocks
}

// scanner is the heading/fence state machine.
type scanner struct {
	state     state
	pending   string // normalized path awaiting its fence; "" for an orphan block
	lang      string
	fenceLen  int
	body      []string
	collected *collector
}

func scan(text string, policy DuplicatePolicy) []model.SnippetBlock {
	s := &scanner{collected: newCollector(policy)}
	for _, line := range strings.Split(text, "\n") {
		s.feed(line)
	}
	if s.state != seekingHeading && s.pending != "" {
		slog.Debug("Dropping unterminated block", "path", s.pending, "state", s.state.String(), "err", model.ErrMalformedBlock)
	}
	return s.collected.blocks()
}

func (s *scanner) feed(line string) {
	switch s.state {
	case seekingHeading:
		if n, lang, ok := openingFence(line); ok {
			s.open("", n, lang)
			return
		}
		if path, ok := headingPath(line); ok {
			s.pending = path
			s.state = seekingFenceOpen
		}

	case seekingFenceOpen:
		if strings.TrimSpace(line) == "" {
			return
		}
		if n, lang, ok := openingFence(line); ok {
			s.open(s.pending, n, lang)
			return
		}
		slog.Debug("Heading without fence", "path", s.pending, "err", model.ErrMalformedBlock)
		s.pending = ""
		s.state = seekingHeading
		if path, ok := headingPath(line); ok {
			s.pending = path
			s.state = seekingFenceOpen
		}

	case inFenceBody:
		if closingFence(line, s.fenceLen) {
			if s.pending != "" {
				s.collected.add(model.SnippetBlock{
					DeclaredPath: s.pending,
					LanguageHint: s.lang,
					Body:         strings.Join(s.body, "\n"),
				})
			}
			s.reset()
			return
		}
		s.body = append(s.body, line)
	}
}

func (s *scanner) open(path string, fenceLen int, lang string) {
	s.pending = path
	s.fenceLen = fenceLen
	s.lang = lang
	s.body = nil
	s.state = inFenceBody
}

func (s *scanner) reset() {
	s.pending = ""
	s.lang = ""
	s.fenceLen = 0
	s.body = nil
	s.state = seekingHeading
}

// openingFence reports whether line opens a backtick fence, returning the
// fence length and the language hint.
func openingFence(line string) (int, string, bool) {
	trimmed := strings.TrimSpace(line)
	n := 0
	for n < len(trimmed) && trimmed[n] == '`' {
		n++
	}
	if n < 3 {
		return 0, "", false
	}
	info := strings.TrimSpace(trimmed[n:])
	if strings.ContainsRune(info, '`') {
		return 0, "", false
	}
	if i := strings.IndexFunc(info, unicode.IsSpace); i >= 0 {
		info = info[:i]
	}
	return n, info, true
}

func closingFence(line string, minLen int) bool {
	trimmed := strings.TrimSpace(line)
	return len(trimmed) >= minLen && strings.Trim(trimmed, "`") == ""
}

// headingPath extracts the path from a heading line such as "### src/a.rs",
// "`src/a.rs`", "## `my notes.md`" or a bare "src/a.rs". Only a backticked
// path may contain whitespace; otherwise such lines are prose. A bare line
// without marker or backticks must look like a path ("Output:" is prose).
func headingPath(line string) (string, bool) {
	s := strings.TrimSpace(line)
	marked := strings.HasPrefix(s, "#")
	s = strings.TrimLeft(s, "#")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ":")

	if len(s) >= 2 && s[0] == '`' && s[len(s)-1] == '`' {
		s = strings.TrimSpace(strings.Trim(s, "`"))
		if s == "" || strings.ContainsRune(s, '`') {
			return "", false
		}
		return s, true
	}

	if s == "" || strings.ContainsRune(s, '`') || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return "", false
	}
	if !marked && !looksLikePath(s) {
		return "", false
	}
	return s, true
}

// collector de-duplicates blocks by path while keeping first-seen order.
type collector struct {
	policy DuplicatePolicy
	index  map[string]int
	out    []model.SnippetBlock
}

func newCollector(policy DuplicatePolicy) *collector {
	return &collector{policy: policy, index: make(map[string]int)}
}

func (c *collector) add(b model.SnippetBlock) {
	if i, ok := c.index[b.DeclaredPath]; ok {
		if c.policy == LastWins {
			c.out[i] = b
		}
		return
	}
	c.index[b.DeclaredPath] = len(c.out)
	c.out = append(c.out, b)
}

func (c *collector) blocks() []model.SnippetBlock {
	return c.out
}
