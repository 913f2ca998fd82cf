package tui

import (
	"fmt"

	"pdfrag/internal/config"
	"pdfrag/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

type storeStatus int

const (
	storeEmpty storeStatus = iota
	storeReady
	storeOtherModel
)

type welcomeModel struct {
	status      storeStatus
	stats       store.Stats
	storedModel string
	err         error
	ready       bool // true once the check has completed
}

// checkStoreMsg is sent after inspecting the store.
type checkStoreMsg struct {
	status storeStatus
	stats  store.Stats
	model  string
	err    error
}

func checkStore(cfg config.Config) tea.Cmd {
	return func() tea.Msg {
		st, err := store.Open(cfg.Backend, cfg.StoreFile())
		if err != nil {
			return checkStoreMsg{err: err}
		}
		defer st.Close()
		return inspect(st, cfg.Model)
	}
}

func inspect(st store.Store, model string) checkStoreMsg {
	stats, err := st.Stats()
	if err != nil {
		return checkStoreMsg{err: err}
	}
	msg := checkStoreMsg{status: storeReady, stats: stats, model: stats.EmbeddingModel}
	switch {
	case stats.TotalChunks == 0:
		msg.status = storeEmpty
	case stats.EmbeddingModel != "" && stats.EmbeddingModel != model:
		msg.status = storeOtherModel
	}
	return msg
}

func (m welcomeModel) Update(msg tea.Msg) (welcomeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case checkStoreMsg:
		m.status = msg.status
		m.stats = msg.stats
		m.storedModel = msg.model
		m.err = msg.err
		m.ready = true
	}
	return m, nil
}

func (m welcomeModel) View(width, height int) string {
	s := "\n"
	s += TitleStyle.Render("  ◆ pdfrag") + "\n"
	s += subtitleStyle.Render("  Local semantic search over your PDFs") + "\n\n"

	if !m.ready {
		s += DimStyle.Render("  Checking store...") + "\n"
		return s
	}
	if m.err != nil {
		s += ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
		s += DimStyle.Render("  Press q to quit.") + "\n"
		return s
	}

	switch m.status {
	case storeReady:
		s += SuccessStyle.Render(fmt.Sprintf("  ✓ %d documents, %d chunks indexed", m.stats.TotalDocuments, m.stats.TotalChunks)) + "\n"
		s += "\n" + DimStyle.Render("  Press Enter to search, i to index the current directory again") + "\n"
	case storeEmpty:
		s += WarnStyle.Render("  ✗ Nothing indexed yet") + "\n"
		s += "\n" + DimStyle.Render("  Press Enter to pick an embedding model and index the current directory") + "\n"
	case storeOtherModel:
		s += WarnStyle.Render(fmt.Sprintf("  ⚠ Store was indexed with %s", m.storedModel)) + "\n"
		s += DimStyle.Render("    Searches will use that model. Run `pdfrag clear` to switch models.") + "\n"
		s += "\n" + DimStyle.Render("  Press Enter to search") + "\n"
	}
	return s
}
