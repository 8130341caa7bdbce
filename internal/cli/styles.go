package cli

import (
	"fmt"
	"strings"

	"resumeflow/internal/types"

	"github.com/charmbracelet/lipgloss"
)

var (
	agentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	stepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	barFull     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	barEmpty    = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
)

const barWidth = 20

// progressBar draws percent (0-100) as a fixed-width bar.
func progressBar(percent int) string {
	percent = min(max(percent, 0), 100)
	filled := percent * barWidth / 100
	return barFull.Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", barWidth-filled)) +
		fmt.Sprintf(" %3d%%", percent)
}

// progressLine is the one-line summary printed on every tracker update.
func progressLine(s types.WorkflowState) string {
	line := progressBar(s.Progress) + "  " + stepStyle.Render(s.CurrentStep) + " " + hintStyle.Render(s.Status)
	if n := len(s.Errors); n > 0 {
		line += "  " + errorStyle.Render(s.Errors[n-1])
	}
	return line
}
