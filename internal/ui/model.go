// ABOUTME: Bubbletea model for the chime session monitor
// ABOUTME: Defines monitor state and update logic
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Resonate-Protocol/chime/pkg/protocol"
	"github.com/Resonate-Protocol/chime/pkg/sound"
	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Target
	target     string
	connected  bool
	serverName string

	// Sessions, oldest first
	sessions []sessionRow

	// Stats
	admitted int
	finished int
	failed   int
	rejected int

	lastError string

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int
}

type sessionRow struct {
	id         string
	resource   string
	state      string
	format     string
	bufferSize int
	err        string
	updated    time.Time
}

// SessionUpdate describes one session lifecycle change
type SessionUpdate struct {
	ID         string
	Resource   string
	Kind       string // "admitted", "started", "finished" or "failed"
	Format     string
	BufferSize int
	Err        string
	At         time.Time
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Connected  *bool
	ServerName string
	Session    *SessionUpdate

	// Rejected reports a play request that failed admission
	Rejected string
}

// FromSoundEvent converts a local player event
func FromSoundEvent(e sound.Event) StatusMsg {
	update := &SessionUpdate{
		ID:       e.SessionID,
		Resource: e.Resource,
		Kind:     string(e.Kind),
		At:       e.At,
	}
	if e.Kind == sound.EventAdmitted {
		update.Format = e.Format.String()
		update.BufferSize = e.Format.BufferSize()
	}
	if e.Err != nil {
		update.Err = e.Err.Error()
	}
	return StatusMsg{Session: update}
}

// FromProtocolEvent converts a session event received from a daemon
func FromProtocolEvent(e protocol.SessionEvent) StatusMsg {
	return StatusMsg{Session: &SessionUpdate{
		ID:       e.SessionID,
		Resource: e.Resource,
		Kind:     e.Kind,
		Err:      e.Error,
		At:       time.UnixMilli(e.At),
	}}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderSessions())
	b.WriteString(m.renderStats())

	if m.showDebug {
		b.WriteString(m.renderDebug())
	}

	b.WriteString(m.renderHelp())

	return b.String()
}

// renderHeader renders the playback target
func (m Model) renderHeader() string {
	status := m.target
	if m.serverName != "" {
		status = fmt.Sprintf("%s (%s)", m.serverName, m.target)
	}
	if !m.connected {
		status += " - not connected"
	}

	return fmt.Sprintf(`┌─ Chime ──────────────────────────────────────────────┐
│ Target: %-44s │
├──────────────────────────────────────────────────────┤
`, truncate(status, 44))
}

// renderSessions renders live and recently ended sessions
func (m Model) renderSessions() string {
	if len(m.sessions) == 0 {
		return "│ No sounds                                            │\n"
	}

	var b strings.Builder
	for _, row := range m.sessions {
		fmt.Fprintf(&b, "│ %s %-9s %-40s │\n", stateIcon(row.state), row.state, truncate(row.resource, 40))
		if m.showDebug {
			fmt.Fprintf(&b, "│     %-48s │\n", truncate(row.format, 48))
		}
		if row.err != "" {
			fmt.Fprintf(&b, "│     %-48s │\n", truncate(row.err, 48))
		}
	}
	return b.String()
}

// renderStats renders playback counters
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ %-52s │
`, fmt.Sprintf("Admitted: %d  Finished: %d  Failed: %d  Rejected: %d",
		m.admitted, m.finished, m.failed, m.rejected))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ c:Clear  d:Debug  q:Quit                             │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	var b strings.Builder
	b.WriteString("│ DEBUG:                                               │\n")
	for _, row := range m.sessions {
		fmt.Fprintf(&b, "│   %-36s %6d bytes │\n", row.id, row.bufferSize)
	}
	if m.lastError != "" {
		fmt.Fprintf(&b, "│   Last rejection: %-34s │\n", truncate(m.lastError, 34))
	}
	return b.String()
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "d":
		m.showDebug = !m.showDebug
	case "c":
		m.clearEnded()
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	if msg.Rejected != "" {
		m.rejected++
		m.lastError = msg.Rejected
	}
	if msg.Session != nil {
		m.applySession(*msg.Session)
	}
}

// applySession records a lifecycle change, adding the row on first sight
func (m *Model) applySession(u SessionUpdate) {
	idx := -1
	for i := range m.sessions {
		if m.sessions[i].id == u.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.sessions = append(m.sessions, sessionRow{id: u.ID, resource: u.Resource})
		idx = len(m.sessions) - 1
	}

	row := &m.sessions[idx]
	row.updated = u.At
	if u.Format != "" {
		row.format = u.Format
		row.bufferSize = u.BufferSize
	}

	switch u.Kind {
	case string(sound.EventAdmitted):
		row.state = "queued"
		m.admitted++
	case string(sound.EventStarted):
		row.state = "playing"
	case string(sound.EventFinished):
		row.state = "finished"
		m.finished++
	case string(sound.EventFailed):
		row.state = "failed"
		row.err = u.Err
		m.failed++
	}

	m.trimHistory()
}

// trimHistory drops the oldest ended sessions beyond maxHistory
func (m *Model) trimHistory() {
	ended := 0
	for _, row := range m.sessions {
		if isEnded(row.state) {
			ended++
		}
	}

	kept := m.sessions[:0]
	for _, row := range m.sessions {
		if isEnded(row.state) && ended > maxHistory {
			ended--
			continue
		}
		kept = append(kept, row)
	}
	m.sessions = kept
}

// clearEnded removes every finished or failed session
func (m *Model) clearEnded() {
	kept := m.sessions[:0]
	for _, row := range m.sessions {
		if !isEnded(row.state) {
			kept = append(kept, row)
		}
	}
	m.sessions = kept
}

func isEnded(state string) bool {
	return state == "finished" || state == "failed"
}

func stateIcon(state string) string {
	switch state {
	case "playing":
		return "▶"
	case "finished":
		return "✓"
	case "failed":
		return "✗"
	}
	return "…"
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
