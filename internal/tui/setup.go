package tui

import (
	"context"
	"fmt"

	"pdfrag/internal/embedder"

	tea "github.com/charmbracelet/bubbletea"
)

type setupModel struct {
	models []embedder.Model
	cursor int
	loaded bool
	err    error
}

// fetchModelsMsg is sent when models have been fetched from Ollama.
type fetchModelsMsg struct {
	models []embedder.Model
	err    error
}

func fetchModels(baseURL string) tea.Cmd {
	return func() tea.Msg {
		models, err := embedder.ListModels(context.Background(), baseURL)
		return fetchModelsMsg{models: models, err: err}
	}
}

func (m setupModel) Update(msg tea.Msg, current string) (setupModel, tea.Cmd) {
	switch msg := msg.(type) {
	case fetchModelsMsg:
		m.loaded = true
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		for _, model := range msg.models {
			if embedder.LooksLikeEmbedding(model.Name) {
				m.models = append(m.models, model)
			}
		}
		// Fallback: if no embedding models found, show all.
		if len(m.models) == 0 {
			m.models = msg.models
		}
		for i, model := range m.models {
			if model.Name == current || model.Name == current+":latest" {
				m.cursor = i
				break
			}
		}

	case tea.KeyMsg:
		if !m.loaded || m.err != nil {
			return m, nil
		}
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.models)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

func (m setupModel) View(width, height int) string {
	s := "\n"
	s += TitleStyle.Render("  Select Embedding Model") + "\n"

	if !m.loaded {
		s += "\n" + DimStyle.Render("  Fetching models from Ollama...") + "\n"
		return s
	}
	if m.err != nil {
		s += "\n" + ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
		s += DimStyle.Render("  Make sure Ollama is running and try again.") + "\n"
		s += DimStyle.Render("  Press q to quit.") + "\n"
		return s
	}
	if len(m.models) == 0 {
		s += "\n" + WarnStyle.Render("  No models found in Ollama.") + "\n"
		s += DimStyle.Render("  Pull a model first: ollama pull nomic-embed-text") + "\n"
		return s
	}

	s += DimStyle.Render("  Used to turn document chunks and queries into vectors") + "\n\n"
	for i, model := range m.models {
		cursor := "  "
		style := listItemStyle
		if i == m.cursor {
			cursor = "▸ "
			style = selectedStyle
		}
		s += fmt.Sprintf("  %s%s\n", cursor, style.Render(fmt.Sprintf("%s (%s)", model.Name, embedder.FormatSize(model.Size))))
	}
	s += "\n"
	s += helpStyle.Render("  ↑/↓ navigate • Enter select and index") + "\n"
	return s
}

func (m setupModel) selected() string {
	if m.cursor < len(m.models) {
		return m.models[m.cursor].Name
	}
	return ""
}
