package ui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor   = lipgloss.Color("39")
	secondaryColor = lipgloss.Color("245")
	successColor   = lipgloss.Color("42")
	warningColor   = lipgloss.Color("214")
	errorColor     = lipgloss.Color("196")
	borderColor    = lipgloss.Color("240")

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	StatusStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	ModeStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("0")).
			Background(primaryColor)

	DisconnectedModeStyle = ModeStyle.
				Background(errorColor)

	LogPaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	SidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	ComposeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	ComposeFocusedStyle = ComposeStyle.
				BorderForeground(primaryColor)

	CaretStyle = lipgloss.NewStyle().Reverse(true)

	TimeStyle      = lipgloss.NewStyle().Foreground(secondaryColor)
	SenderStyle    = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	OwnStyle       = lipgloss.NewStyle().Bold(true).Foreground(successColor)
	ServerStyle    = lipgloss.NewStyle().Bold(true).Foreground(warningColor)
	ClientStyle    = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	DebugStyle     = lipgloss.NewStyle().Foreground(borderColor)
	MutedStyle     = lipgloss.NewStyle().Foreground(secondaryColor)
	LegendKeyStyle = lipgloss.NewStyle().Foreground(primaryColor)
)
