package model

// SourceFile is one file read from disk in copy mode.
type SourceFile struct {
	Path    string
	Content string
}

// Style selects the overall shape of formatted output.
type Style string

const (
	StyleMarkdown Style = "markdown"
	StyleXML      Style = "xml"
)

// FormatOptions applies uniformly to every file of one formatting call.
type FormatOptions struct {
	// Wrap each file body in ``` fences annotated with a language hint.
	UseMarkdownFences bool
	// LineNumberStart is the number given to the first line of each file. 0 disables numbering.
	LineNumberStart int
	// LinePrefix is written between the line number and the line text.
	LinePrefix string
	// Header is written once before all files, e.g. "# Relevant Code". Empty omits it.
	Header string
	Style  Style
}

// DefaultFormatOptions returns the options used when nothing is configured.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{
		UseMarkdownFences: true,
		Style:             StyleMarkdown,
	}
}

// SnippetBlock is one (path, content) unit recognized inside clipboard text.
type SnippetBlock struct {
	DeclaredPath string
	LanguageHint string
	Body         string
}

// ClipboardSnapshot is the last clipboard text a watch session has seen.
type ClipboardSnapshot struct {
	Text               string
	ObservedAtSequence uint64
}

// ApplyStatus is the outcome of writing one block.
type ApplyStatus string

const (
	StatusWritten ApplyStatus = "written"
	StatusFailed  ApplyStatus = "failed"
)

// FileAction records whether a write created a new file or replaced an existing one.
type FileAction string

const (
	ActionCreate FileAction = "create"
	ActionModify FileAction = "modify"
)

// ApplyResult reports what happened to a single declared path.
type ApplyResult struct {
	// Path is the declared path as it appeared in the snippet.
	Path string
	// AbsPath is the resolved destination. Empty when resolution failed.
	AbsPath string
	Status  ApplyStatus
	Action  FileAction
	// Reason is set for failed results. It wraps one of the sentinel errors.
	Reason error
}

// Written reports whether the block was persisted.
func (r ApplyResult) Written() bool { return r.Status == StatusWritten }

// Summary holds the results of an operation for display.
type Summary struct {
	Created  []string
	Modified []string
	Failed   []string
	Message  string
}

// Summarize groups apply results by outcome.
func Summarize(results []ApplyResult) Summary {
	var s Summary
	for _, r := range results {
		switch {
		case !r.Written():
			s.Failed = append(s.Failed, r.Path)
		case r.Action == ActionCreate:
			s.Created = append(s.Created, r.Path)
		default:
			s.Modified = append(s.Modified, r.Path)
		}
	}
	return s
}
