package tui

import "github.com/charmbracelet/lipgloss"

// Color Palette (Dracula-inspired)
var (
	colorPurple = lipgloss.Color("#BD93F9")
	colorCyan   = lipgloss.Color("#8BE9FD")
	colorGreen  = lipgloss.Color("#50FA7B")
	colorRed    = lipgloss.Color("#FF5555")
	colorGray   = lipgloss.Color("#6272A4")
	colorTeal   = lipgloss.Color("#008069")
	colorWhite  = lipgloss.Color("#FFFFFF")
)

// Shared Styles
var (
	headerStyle = lipgloss.NewStyle().
			Align(lipgloss.Center).
			Foreground(colorWhite).
			Background(colorTeal).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(colorCyan).
				Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)

	errStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	titleStyle = lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(colorGreen)
)
