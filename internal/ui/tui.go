// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the session monitor
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// maxHistory bounds how many ended sessions stay on screen
const maxHistory = 8

// NewModel creates a new TUI model for the given playback target
func NewModel(target string) Model {
	return Model{
		target: target,
	}
}

// Run creates the TUI program; the caller runs it and feeds it StatusMsg values
func Run(target string) *tea.Program {
	return tea.NewProgram(NewModel(target), tea.WithAltScreen())
}
