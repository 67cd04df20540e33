package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Severity colors
var (
	colorCritical = lipgloss.Color("#FF0000")
	colorHigh     = lipgloss.Color("#FF8800")
	colorMedium   = lipgloss.Color("#FFFF00")
	colorLow      = lipgloss.Color("#00FF00")
	colorInfo     = lipgloss.Color("#5FAFFF")
	colorMuted    = lipgloss.Color("#888888")
	colorAccent   = lipgloss.Color("#7B68EE")
	colorBorder   = lipgloss.Color("#444444")
)

// Panel styles
var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder)

	styleDetailPanel = lipgloss.NewStyle().
				Padding(0, 1).
				BorderStyle(lipgloss.NormalBorder()).
				BorderTop(true).
				BorderForeground(colorBorder)

	styleFooter = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	styleSearchPrompt = lipgloss.NewStyle().
				Foreground(colorAccent).Bold(true)
)

// severityStyle returns the lipgloss style for a severity level.
func severityStyle(severity string) lipgloss.Style {
	switch strings.ToUpper(severity) {
	case "CRITICAL":
		return lipgloss.NewStyle().Foreground(colorCritical).Bold(true)
	case "HIGH":
		return lipgloss.NewStyle().Foreground(colorHigh).Bold(true)
	case "MEDIUM":
		return lipgloss.NewStyle().Foreground(colorMedium)
	case "LOW":
		return lipgloss.NewStyle().Foreground(colorLow)
	case "INFO":
		return lipgloss.NewStyle().Foreground(colorInfo)
	default:
		return lipgloss.NewStyle()
	}
}

// statusStyle returns the lipgloss style for a policy verdict.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "PASS":
		return lipgloss.NewStyle().Foreground(colorLow).Bold(true)
	case "WARN":
		return lipgloss.NewStyle().Foreground(colorMedium).Bold(true)
	case "FAIL":
		return lipgloss.NewStyle().Foreground(colorCritical).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(colorMuted)
	}
}
