package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"pdfrag/internal/search"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const helpText = `Commands:
  /k N    - return N results per query
  /clear  - clear the screen
  /exit   - quit
  /help   - show this help`

// Searcher runs a query. *search.Engine satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]search.Result, error)
}

type searchModel struct {
	viewport    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	entries     []entry
	engine      Searcher
	ctx         context.Context
	searching   bool
	k           int
	width       int
	height      int
	initialized bool
}

type entry struct {
	kind    string // query, results, error, system
	content string
}

// resultsMsg is sent when a query completes.
type resultsMsg struct {
	query   string
	results []search.Result
	err     error
}

func newSearchModel(ctx context.Context, engine Searcher, k int) searchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	ti := textinput.New()
	ti.Placeholder = "Search your documents..."
	ti.CharLimit = 2000
	ti.Focus()

	return searchModel{
		spinner: sp,
		input:   ti,
		engine:  engine,
		ctx:     ctx,
		k:       k,
	}
}

func (m *searchModel) initViewport(width, height int) {
	m.width = width
	m.height = height

	// Layout: viewport + status bar (1 line) + input (1 line) + gap (1 line).
	vpHeight := height - 3
	if vpHeight < 5 {
		vpHeight = 5
	}
	m.viewport = viewport.New(width, vpHeight)
	m.viewport.SetContent(DimStyle.Render("Type a question or phrase and press Enter.\n\n" + helpText))

	m.input.Width = width - 4

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err == nil {
		m.renderer = r
	}

	m.initialized = true
}

func runQuery(ctx context.Context, engine Searcher, query string, k int) tea.Cmd {
	return func() tea.Msg {
		results, err := engine.Search(ctx, query, k)
		return resultsMsg{query: query, results: results, err: err}
	}
}

func (m searchModel) Update(msg tea.Msg) (searchModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case resultsMsg:
		m.searching = false
		if msg.err != nil {
			m.entries = append(m.entries, entry{kind: "error", content: msg.err.Error()})
		} else {
			m.entries = append(m.entries, entry{kind: "results", content: search.Markdown(msg.query, msg.results)})
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.searching {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.refresh()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.searching {
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}

	if !m.searching {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m searchModel) submit() (searchModel, tea.Cmd) {
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		return m, nil
	}
	m.input.Reset()

	switch {
	case query == "/exit" || query == "/quit":
		return m, tea.Quit
	case query == "/clear":
		m.entries = nil
		m.viewport.SetContent(DimStyle.Render("Cleared."))
		return m, nil
	case query == "/help":
		m.entries = append(m.entries, entry{kind: "system", content: helpText})
		m.refresh()
		return m, nil
	case strings.HasPrefix(query, "/k"):
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(query, "/k")))
		if err != nil || n < 1 {
			m.entries = append(m.entries, entry{kind: "error", content: "usage: /k N with N >= 1"})
		} else {
			m.k = n
			m.entries = append(m.entries, entry{kind: "system", content: fmt.Sprintf("Returning %d results per query.", n)})
		}
		m.refresh()
		return m, nil
	}

	m.entries = append(m.entries, entry{kind: "query", content: query})
	m.searching = true
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, runQuery(m.ctx, m.engine, query, m.k))
}

func (m *searchModel) refresh() {
	m.viewport.SetContent(m.renderEntries())
	m.viewport.GotoBottom()
}

func (m searchModel) renderMarkdown(content string) string {
	if m.renderer == nil {
		return resultStyle.Render(content)
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return resultStyle.Render(content)
	}
	return strings.TrimRight(rendered, "\n")
}

func (m searchModel) renderEntries() string {
	var sb strings.Builder
	for _, e := range m.entries {
		switch e.kind {
		case "query":
			sb.WriteString(LabelStyle.Render("Query: ") + e.content + "\n\n")
		case "results":
			sb.WriteString(m.renderMarkdown(e.content) + "\n\n")
		case "error":
			sb.WriteString(ErrorStyle.Render("Error: "+e.content) + "\n\n")
		case "system":
			sb.WriteString(DimStyle.Render(e.content) + "\n\n")
		}
	}
	if m.searching {
		sb.WriteString(m.spinner.View() + " " + DimStyle.Render("Searching...") + "\n")
	}
	return sb.String()
}

func (m searchModel) View(width, height int) string {
	if !m.initialized {
		return ""
	}

	status := "idle"
	if m.searching {
		status = "searching..."
	}
	statusBar := statusBarStyle.
		Width(m.width).
		Render(fmt.Sprintf(" pdfrag search • top %d • %s", m.k, status))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		statusBar,
		m.input.View(),
	)
}
