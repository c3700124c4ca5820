package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	pathStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	busyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	contentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	metadataStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
