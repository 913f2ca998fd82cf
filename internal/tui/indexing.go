package tui

import (
	"context"
	"fmt"
	"path/filepath"

	"pdfrag/internal/app"
	"pdfrag/internal/index"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type indexingModel struct {
	spinner        spinner.Model
	current        string
	filesProcessed int
	filesTotal     int
	done           bool
	report         *index.Report
	err            error
}

func newIndexingModel() indexingModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	return indexingModel{spinner: sp}
}

// indexDoneMsg is sent when indexing completes.
type indexDoneMsg struct {
	report *index.Report
	err    error
}

// indexProgressMsg is sent after each file.
type indexProgressMsg struct {
	path           string
	filesProcessed int
	filesTotal     int
}

func runIndex(ctx context.Context, a *app.App, roots []string, ref *programRef) tea.Cmd {
	return func() tea.Msg {
		idx, err := a.Indexer(func(path string, done, total int) {
			if ref != nil && ref.p != nil {
				ref.p.Send(indexProgressMsg{path: path, filesProcessed: done, filesTotal: total})
			}
		})
		if err != nil {
			return indexDoneMsg{err: err}
		}
		rep, err := idx.Index(ctx, roots)
		return indexDoneMsg{report: rep, err: err}
	}
}

func (m indexingModel) Update(msg tea.Msg) (indexingModel, tea.Cmd) {
	switch msg := msg.(type) {
	case indexDoneMsg:
		m.done = true
		m.report = msg.report
		m.err = msg.err
		return m, nil
	case indexProgressMsg:
		m.current = msg.path
		m.filesProcessed = msg.filesProcessed
		m.filesTotal = msg.filesTotal
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m indexingModel) View(width, height int) string {
	s := "\n"
	s += TitleStyle.Render("  Indexing") + "\n\n"

	if m.done {
		if m.err != nil {
			s += ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
		} else if m.report != nil && m.report.Partial() {
			s += WarnStyle.Render(fmt.Sprintf("  ⚠ Indexing finished with %d failures", len(m.report.Failures))) + "\n\n"
		} else {
			s += SuccessStyle.Render("  ✓ Indexing complete!") + "\n\n"
		}
		if r := m.report; r != nil {
			s += fmt.Sprintf("  Files: %d total, %d indexed, %d unchanged, %d skipped\n",
				r.FilesTotal, r.FilesIndexed, r.FilesUnchanged, r.FilesSkipped)
			s += fmt.Sprintf("  Chunks: %d\n", r.ChunksIndexed)
			for i, f := range r.Failures {
				if i == 5 {
					s += DimStyle.Render(fmt.Sprintf("    ... and %d more", len(r.Failures)-5)) + "\n"
					break
				}
				s += DimStyle.Render(fmt.Sprintf("    %s: %s", filepath.Base(f.Path), f.Reason)) + "\n"
			}
		}
		s += "\n"
		s += DimStyle.Render("  Press Enter to start searching, or q to quit.") + "\n"
		return s
	}

	s += fmt.Sprintf("  %s %s\n", m.spinner.View(), "Extracting and embedding documents...")
	if m.filesTotal > 0 {
		s += fmt.Sprintf("  %d / %d files processed\n", m.filesProcessed, m.filesTotal)
		s += DimStyle.Render("  "+filepath.Base(m.current)) + "\n"
	}
	s += "\n"
	s += DimStyle.Render("  This may take a while for large collections...") + "\n"
	return s
}
