package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"pdfrag/internal/index"
	"pdfrag/internal/search"
	"pdfrag/internal/store"
	"pdfrag/internal/tui"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(w io.Writer, rep *index.Report, elapsed time.Duration) {
	if rep.Partial() {
		fmt.Fprintln(w, tui.WarnStyle.Render(fmt.Sprintf("Done with %d failures in %s", len(rep.Failures), elapsed.Round(time.Millisecond))))
	} else {
		fmt.Fprintln(w, tui.SuccessStyle.Render(fmt.Sprintf("✓ Done in %s", elapsed.Round(time.Millisecond))))
	}
	fmt.Fprintf(w, "  Files:   %d total, %d indexed, %d unchanged, %d skipped\n",
		rep.FilesTotal, rep.FilesIndexed, rep.FilesUnchanged, rep.FilesSkipped)
	fmt.Fprintf(w, "  Chunks:  %d\n", rep.ChunksIndexed)

	for _, f := range rep.Failures {
		where := f.Path
		if f.Page != nil {
			where += fmt.Sprintf(" page %d", *f.Page)
		}
		if f.Chunk != nil {
			where += fmt.Sprintf(" chunk %d", *f.Chunk)
		}
		fmt.Fprintf(w, "  %s %s: %s\n", tui.ErrorStyle.Render("✗"), where, tui.DimStyle.Render(f.Reason))
	}
}

func printResults(w io.Writer, results []search.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, tui.DimStyle.Render("No results found."))
		return
	}
	fmt.Fprintf(w, "Found %d results:\n\n", len(results))
	for i, r := range results {
		fmt.Fprintln(w, tui.TitleStyle.Render(fmt.Sprintf("--- Result %d (Similarity: %.1f%%) ---", i+1, r.Score*100)))
		fmt.Fprintf(w, "%s %s\n", tui.LabelStyle.Render("Source:"), r.Record.SourcePath)
		if r.Record.PageNumber != nil {
			fmt.Fprintf(w, "%s %d\n", tui.LabelStyle.Render("Page:"), *r.Record.PageNumber)
		}
		fmt.Fprintf(w, "%s %s\n\n", tui.LabelStyle.Render("Content:"), search.Snippet(r.Record.Text, search.SnippetLength))
	}
}

func printStats(w io.Writer, st store.Stats, path string) {
	fmt.Fprintln(w, tui.TitleStyle.Render("Knowledge base statistics"))
	fmt.Fprintf(w, "  %s %s\n", tui.LabelStyle.Render("store:"), path)
	fmt.Fprintf(w, "  %s %d\n", tui.LabelStyle.Render("total_documents:"), st.TotalDocuments)
	fmt.Fprintf(w, "  %s %d\n", tui.LabelStyle.Render("total_chunks:"), st.TotalChunks)
	model := st.EmbeddingModel
	if model == "" {
		model = "-"
	}
	fmt.Fprintf(w, "  %s %s\n", tui.LabelStyle.Render("embedding_model:"), model)
	dim := "-"
	if st.Dimension != nil {
		dim = fmt.Sprint(*st.Dimension)
	}
	fmt.Fprintf(w, "  %s %s\n", tui.LabelStyle.Render("embedding_dimension:"), dim)
	if len(st.SourceFiles) > 0 {
		fmt.Fprintf(w, "  %s\n", tui.LabelStyle.Render("sources:"))
		for _, s := range st.SourceFiles {
			fmt.Fprintf(w, "    - %s\n", s)
		}
	}
}
