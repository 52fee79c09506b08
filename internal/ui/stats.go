package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sokinpui/snippy/model"
)

// bytesPerToken approximates the tokenizer of common chat models.
const bytesPerToken = 4

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	totalStyle  = numberStyle.Bold(true)
)

// FileStat describes one copied file.
type FileStat struct {
	Path   string
	Lines  int
	Bytes  int
	Tokens int
}

// Stats computes per-file statistics for files.
func Stats(files []model.SourceFile) []FileStat {
	stats := make([]FileStat, 0, len(files))
	for _, f := range files {
		lines := strings.Count(f.Content, "\n")
		if f.Content != "" && !strings.HasSuffix(f.Content, "\n") {
			lines++
		}
		stats = append(stats, FileStat{
			Path:   f.Path,
			Lines:  lines,
			Bytes:  len(f.Content),
			Tokens: EstimateTokens(f.Content),
		})
	}
	return stats
}

// EstimateTokens returns a rough token count for text.
func EstimateTokens(text string) int {
	return (len(text) + bytesPerToken - 1) / bytesPerToken
}

// StatsTable renders stats as a table with a total row.
func StatsTable(stats []FileStat) string {
	rows := make([][]string, 0, len(stats)+1)
	var lines, bytes, tokens int
	for _, s := range stats {
		rows = append(rows, []string{s.Path, strconv.Itoa(s.Lines), strconv.Itoa(s.Bytes), strconv.Itoa(s.Tokens)})
		lines += s.Lines
		bytes += s.Bytes
		tokens += s.Tokens
	}
	rows = append(rows, []string{"total", strconv.Itoa(lines), strconv.Itoa(bytes), strconv.Itoa(tokens)})
	last := len(rows) - 1

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("File", "Lines", "Bytes", "~Tokens").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == last && col > 0:
				return totalStyle
			case col > 0:
				return numberStyle
			default:
				return cellStyle
			}
		})
	return t.String()
}
