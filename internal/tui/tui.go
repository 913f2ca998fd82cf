package tui

import (
	"context"
	"log/slog"

	"pdfrag/internal/app"
	"pdfrag/internal/config"
	"pdfrag/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
)

// ViewState represents which screen is active.
type ViewState int

const (
	ViewWelcome ViewState = iota
	ViewSetup
	ViewIndexing
	ViewSearch
)

// programRef is an indirect pointer to the tea.Program so background goroutines
// can send messages. It must be set after tea.NewProgram returns but before Run.
type programRef struct {
	p *tea.Program
}

// Config holds configuration passed from the CLI layer.
type Config struct {
	App config.Config
	// Roots are indexed from the TUI; defaults to the working directory.
	Roots []string
	// Logger must not write to the terminal the TUI owns.
	Logger *slog.Logger

	// program is set internally so background goroutines can send messages.
	program *programRef
}

// Model is the top-level Bubble Tea model.
type Model struct {
	state  ViewState
	config Config
	ctx    context.Context
	width  int
	height int

	app      *app.App
	welcome  welcomeModel
	setup    setupModel
	indexing indexingModel
	search   searchModel
	err      error
}

// New creates a new TUI model with the given config.
func New(ctx context.Context, cfg Config) Model {
	if len(cfg.Roots) == 0 {
		cfg.Roots = []string{"."}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return Model{
		state:  ViewWelcome,
		config: cfg,
		ctx:    ctx,
	}
}

func (m Model) Init() tea.Cmd {
	return checkStore(m.config.App)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.state == ViewSearch {
			var c tea.Cmd
			m.search, c = m.search.Update(msg)
			return m, c
		}
		return m, nil

	case tea.KeyMsg:
		// Global quit.
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.state != ViewSearch {
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd

	switch m.state {
	case ViewWelcome:
		m.welcome, cmd = m.welcome.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		keyMsg, ok := msg.(tea.KeyMsg)
		if !ok || !m.welcome.ready || m.welcome.err != nil {
			break
		}
		switch {
		case keyMsg.Type == tea.KeyEnter && m.welcome.status == storeEmpty:
			m.state = ViewSetup
			return m, fetchModels(m.config.App.OllamaURL)
		case keyMsg.Type == tea.KeyEnter && m.welcome.status == storeOtherModel:
			m.config.App.Model = m.welcome.storedModel
			return m, m.transitionToSearch()
		case keyMsg.Type == tea.KeyEnter:
			return m, m.transitionToSearch()
		case keyMsg.String() == "i" && m.welcome.status == storeReady:
			return m, m.startIndexing()
		}

	case ViewSetup:
		m.setup, cmd = m.setup.Update(msg, m.config.App.Model)
		if cmd != nil {
			return m, cmd
		}
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.setup.loaded && m.setup.err == nil && len(m.setup.models) > 0 {
			if sel := m.setup.selected(); sel != "" {
				m.config.App.Model = sel
			}
			return m, m.startIndexing()
		}

	case ViewIndexing:
		m.indexing, cmd = m.indexing.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.indexing.done {
			return m, m.transitionToSearch()
		}

	case ViewSearch:
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}

	return m, nil
}

// openApp opens the store and embedder for the current model, reusing the
// open ones when the model has not changed.
func (m *Model) openApp() bool {
	if m.app != nil {
		if m.app.Config.Model == m.config.App.Model {
			return true
		}
		m.app.Close()
		m.app = nil
	}
	a, err := app.Open(m.config.App, m.config.Logger)
	if err != nil {
		m.err = err
		return false
	}
	m.app = a
	return true
}

func (m *Model) startIndexing() tea.Cmd {
	if !m.openApp() {
		return nil
	}
	m.state = ViewIndexing
	m.indexing = newIndexingModel()
	return tea.Batch(m.indexing.spinner.Tick, runIndex(m.ctx, m.app, m.config.Roots, m.config.program))
}

func (m *Model) transitionToSearch() tea.Cmd {
	if !m.openApp() {
		return nil
	}
	m.search = newSearchModel(m.ctx, m.app.Engine, m.config.App.TopK)
	m.search.initViewport(m.width, m.height)
	m.state = ViewSearch
	return nil
}

func (m Model) View() string {
	if m.err != nil {
		return ErrorStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	switch m.state {
	case ViewWelcome:
		return m.welcome.View(m.width, m.height)
	case ViewSetup:
		return m.setup.View(m.width, m.height)
	case ViewIndexing:
		return m.indexing.View(m.width, m.height)
	case ViewSearch:
		return m.search.View(m.width, m.height)
	}
	return ""
}

// Run starts the TUI program and blocks until the user quits.
func Run(ctx context.Context, cfg Config) error {
	ref := &programRef{}
	cfg.program = ref
	model := New(ctx, cfg)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	ref.p = p
	final, err := p.Run()
	if fm, ok := final.(Model); ok && fm.app != nil {
		fm.app.Close()
	}
	return err
}
