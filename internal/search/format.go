package search

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// SnippetLength is the number of characters shown per result in summaries.
const SnippetLength = 300

// Snippet collapses whitespace in text and cuts it to at most n characters,
// marking a cut with "...".
func Snippet(text string, n int) string {
	s := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimRight(string(r[:n]), " ") + "..."
}

// Location describes where a result came from, e.g. "report.pdf, page 3".
func Location(r Result) string {
	loc := filepath.Base(r.Record.SourcePath)
	if r.Record.PageNumber != nil {
		loc += fmt.Sprintf(", page %d", *r.Record.PageNumber)
	}
	return loc
}

// Markdown renders results as a markdown document.
func Markdown(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks)\n\n", query, len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "### Result %d: %s\n\n", i+1, Location(r))
		fmt.Fprintf(&sb, "**Similarity:** %.1f%%  \n**Source:** `%s`  \n**Chunk:** %d\n\n",
			r.Score*100, r.Record.SourcePath, r.Record.ChunkIndex)
		for _, line := range strings.Split(strings.TrimSpace(r.Record.Text), "\n") {
			sb.WriteString("> ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
