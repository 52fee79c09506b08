package format

import (
	"path/filepath"
	"strings"
)

// languagesByExt maps a lowercase file extension (without the dot) to the
// info string used on the opening fence.
var languagesByExt = map[string]string{
	// Programming languages
	"rs":    "rust",
	"py":    "python",
	"pyi":   "python",
	"js":    "javascript",
	"mjs":   "javascript",
	"cjs":   "javascript",
	"jsx":   "jsx",
	"ts":    "typescript",
	"tsx":   "tsx",
	"go":    "go",
	"java":  "java",
	"c":     "c",
	"h":     "c",
	"cc":    "cpp",
	"cpp":   "cpp",
	"cxx":   "cpp",
	"hpp":   "cpp",
	"cs":    "csharp",
	"fs":    "fsharp",
	"rb":    "ruby",
	"php":   "php",
	"swift": "swift",
	"kt":    "kotlin",
	"kts":   "kotlin",
	"r":     "r",
	"scala": "scala",
	"lua":   "lua",
	"dart":  "dart",
	"ex":    "elixir",
	"exs":   "elixir",
	"hs":    "haskell",
	"ml":    "ocaml",
	"zig":   "zig",
	"pl":    "perl",
	"proto": "protobuf",

	// Web
	"html":   "html",
	"htm":    "html",
	"xml":    "xml",
	"xhtml":  "xhtml",
	"css":    "css",
	"scss":   "scss",
	"sass":   "sass",
	"less":   "less",
	"vue":    "vue",
	"svelte": "svelte",

	// Scripts and configuration
	"sh":   "sh",
	"bash": "bash",
	"zsh":  "zsh",
	"fish": "fish",
	"ps1":  "powershell",
	"bat":  "batch",
	"toml": "toml",
	"yaml": "yaml",
	"yml":  "yaml",
	"json": "json",
	"ini":  "ini",
	"conf": "conf",
	"hcl":  "hcl",
	"tf":   "hcl",

	// Data and markup
	"sql": "sql",
	"csv": "csv",
	"md":  "markdown",
	"rst": "rst",
	"tex": "latex",
	"bib": "bibtex",
}

var languagesByName = map[string]string{
	"dockerfile":     "dockerfile",
	"makefile":       "makefile",
	"gnumakefile":    "makefile",
	"cmakelists.txt": "cmake",
}

// LanguageFor returns the fence info string for path, or "" when the
// extension is unknown.
func LanguageFor(path string) string {
	base := strings.ToLower(filepath.Base(path))
	if lang, ok := languagesByName[base]; ok {
		return lang
	}
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	return languagesByExt[ext]
}

// typeFor is the XML "type" attribute; it never returns an empty string.
func typeFor(path string) string {
	if lang := LanguageFor(path); lang != "" {
		return lang
	}
	return "unknown"
}
