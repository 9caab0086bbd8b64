package main

import "github.com/charmbracelet/lipgloss"

// Style definitions for verification output.
var (
	// MatchStyle marks a reproduced run.
	MatchStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))

	// DivergedStyle marks a run that no longer reproduces.
	DivergedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))

	// DetailStyle for per-field divergence lines.
	DetailStyle = lipgloss.NewStyle().Faint(true)
)

func verdict(match bool) string {
	if match {
		return MatchStyle.Render("MATCH")
	}
	return DivergedStyle.Render("DIVERGED")
}
