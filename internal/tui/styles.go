package tui

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent = lipgloss.Color("212")
	colorLabel  = lipgloss.Color("111")
	colorText   = lipgloss.Color("252")
	colorSubtle = lipgloss.Color("245")
	colorMuted  = lipgloss.Color("241")
	colorBar    = lipgloss.Color("236")
	colorOK     = lipgloss.Color("78")
	colorWarn   = lipgloss.Color("214")
	colorError  = lipgloss.Color("196")
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// Styles shared with the plain command output.
var (
	TitleStyle   = fg(colorAccent).Bold(true)
	LabelStyle   = fg(colorLabel).Bold(true)
	SuccessStyle = fg(colorOK)
	WarnStyle    = fg(colorWarn)
	ErrorStyle   = fg(colorError)
	DimStyle     = fg(colorMuted)
)

var (
	subtitleStyle  = fg(colorSubtle)
	resultStyle    = fg(colorText)
	listItemStyle  = fg(colorText)
	selectedStyle  = fg(colorAccent).Bold(true)
	helpStyle      = fg(colorMuted)
	statusBarStyle = fg(colorMuted).Background(colorBar).Padding(0, 1)
)
