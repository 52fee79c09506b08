package format

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/sokinpui/snippy/model"
)

const minFence = 3

// Format renders files into one clipboard-ready block. Files keep the order
// they were given in and are separated by a blank line.
func Format(files []model.SourceFile, opts model.FormatOptions) string {
	if opts.Style == model.StyleXML {
		return formatXML(files, opts)
	}

	var b strings.Builder
	if opts.Header != "" {
		b.WriteString(opts.Header)
		b.WriteString("\n\n")
	}
	for i, f := range files {
		if i > 0 {
			b.WriteString("\n")
		}
		writeMarkdownFile(&b, f, opts)
	}
	return b.String()
}

func writeMarkdownFile(b *strings.Builder, f model.SourceFile, opts model.FormatOptions) {
	b.WriteString("### ")
	b.WriteString(headingText(f.Path))
	b.WriteString("\n")

	lines := splitLines(f.Content)
	if !opts.UseMarkdownFences {
		writeLines(b, lines, opts)
		return
	}

	fence := fenceFor(lines)
	b.WriteString(fence)
	b.WriteString(LanguageFor(f.Path))
	b.WriteString("\n")
	writeLines(b, lines, opts)
	b.WriteString(fence)
	b.WriteString("\n")
}

func formatXML(files []model.SourceFile, opts model.FormatOptions) string {
	var b strings.Builder
	if opts.Header != "" {
		b.WriteString(opts.Header)
		b.WriteString("\n\n")
	}
	b.WriteString("<files>\n")
	for _, f := range files {
		fmt.Fprintf(&b, "<file path=\"%s\" type=\"%s\">\n", html.EscapeString(f.Path), typeFor(f.Path))
		lines := splitLines(f.Content)
		if opts.LineNumberStart > 0 {
			for i, line := range lines {
				fmt.Fprintf(&b, "<line number=\"%d\">%s</line>\n", opts.LineNumberStart+i, line)
			}
		} else {
			for _, line := range lines {
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
		b.WriteString("</file>\n")
	}
	b.WriteString("</files>\n")
	return b.String()
}

func writeLines(b *strings.Builder, lines []string, opts model.FormatOptions) {
	if opts.LineNumberStart <= 0 {
		for _, line := range lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
		return
	}

	width := len(strconv.Itoa(opts.LineNumberStart + len(lines) - 1))
	for i, line := range lines {
		fmt.Fprintf(b, "%*d%s%s\n", width, opts.LineNumberStart+i, opts.LinePrefix, line)
	}
}

// splitLines splits content into lines without the terminating newline of
// the last line, so "a\n" and "a" both yield ["a"].
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

// fenceFor returns a backtick fence longer than any backtick-only line in the
// body so the body can never close its own block.
func fenceFor(lines []string) string {
	n := minFence
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.Trim(trimmed, "`") != "" {
			continue
		}
		if len(trimmed) >= n {
			n = len(trimmed) + 1
		}
	}
	return strings.Repeat("`", n)
}

// headingText backticks paths that would not read back as a bare heading:
// ones with whitespace, a leading '#' or a trailing ':'.
func headingText(path string) string {
	if strings.ContainsAny(path, " \t") || strings.HasPrefix(path, "#") || strings.HasSuffix(path, ":") {
		return "`" + path + "`"
	}
	return path
}
