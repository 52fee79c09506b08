package parser

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/sokinpui/snippy/model"
)

// filenameCommentRegex matches a first body line such as "// filename: a.go",
// "# filename: a.py", "/* filename: a.c */" or "<!-- filename: a.html -->".
var filenameCommentRegex = regexp.MustCompile(
	`^\s*(?:(?://|#|--)\s*(?i:file(?:name)?|path):\s*(\S+)\s*` +
		`|/\*\s*(?i:file(?:name)?|path):\s*(\S+)\s*\*/\s*` +
		`|<!--\s*(?i:file(?:name)?|path):\s*(\S+)\s*-->\s*)$`)

// ExtractMarkdown walks the markdown AST of source and returns the fenced
// code blocks that declare a path, either through a backticked path in the
// heading or paragraph immediately before the block, or through a filename
// comment on the first line of the block. A filename comment wins over the
// surrounding text and is removed from the body.
func ExtractMarkdown(source []byte, opts Options) []model.SnippetBlock {
	collected := newCollector(opts.Policy)
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		if !fenceClosed(fenced, source) {
			return ast.WalkSkipChildren, nil
		}

		var content bytes.Buffer
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			content.Write(line.Value(source))
		}
		body := strings.TrimSuffix(content.String(), "\n")

		path, rest, ok := filenameFromComment(body)
		if ok {
			body = rest
		} else {
			path = hintPath(fenced.PreviousSibling(), source)
		}
		if path == "" {
			return ast.WalkSkipChildren, nil
		}

		collected.add(model.SnippetBlock{
			DeclaredPath: path,
			LanguageHint: string(fenced.Language(source)),
			Body:         body,
		})
		return ast.WalkSkipChildren, nil
	}

	// The walker never returns an error.
	_ = ast.Walk(root, walker)

	return collected.blocks()
}

// fenceClosed reports whether the block has an explicit closing fence.
// goldmark runs an unterminated fence to the end of the document.
func fenceClosed(fenced *ast.FencedCodeBlock, source []byte) bool {
	var rest []byte
	lines := fenced.Lines()
	switch {
	case lines.Len() > 0:
		rest = source[lines.At(lines.Len()-1).Stop:]
	case fenced.Info != nil:
		_, after, found := bytes.Cut(source[fenced.Info.Segment.Stop:], []byte("\n"))
		if !found {
			return false
		}
		rest = after
	default:
		return false
	}
	next, _, _ := bytes.Cut(rest, []byte("\n"))
	return closingFence(string(next), 3)
}

func filenameFromComment(body string) (path, rest string, ok bool) {
	first, rest, _ := strings.Cut(body, "\n")
	m := filenameCommentRegex.FindStringSubmatch(strings.TrimSuffix(first, "\r"))
	if m == nil {
		return "", body, false
	}
	for _, g := range m[1:] {
		if g != "" {
			return g, rest, true
		}
	}
	return "", body, false
}

// hintPath returns the first backticked path in a heading or paragraph node,
// falling back to heading text that is a single path-like token.
func hintPath(prev ast.Node, source []byte) string {
	if prev == nil {
		return ""
	}
	switch prev.(type) {
	case *ast.Paragraph, *ast.Heading:
	default:
		return ""
	}

	for c := prev.FirstChild(); c != nil; c = c.NextSibling() {
		span, ok := c.(*ast.CodeSpan)
		if !ok {
			continue
		}
		if p := strings.TrimSpace(inlineText(span, source)); looksLikePath(p) {
			return p
		}
	}

	if _, ok := prev.(*ast.Heading); ok {
		if p, ok := headingPath(inlineText(prev, source)); ok && looksLikePath(p) {
			return p
		}
	}
	return ""
}

func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(inlineText(c, source))
		}
	}
	return b.String()
}

func looksLikePath(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t") {
		return false
	}
	return strings.ContainsAny(s, "./")
}
