// Package tui renders the daemon's state in the terminal and forwards the
// user's key presses back to it.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tangthinker/autobackup/internal/app"
)

const (
	refreshInterval = time.Second
	logHeight       = 10
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#54baff"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#a0a0a0"))
	enabledStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04b575"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4a4a4a"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f87"))
	logStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Render
)

// Backend is the daemon as seen by the dashboard
type Backend interface {
	Status() (app.Status, error)
	Start() (app.Status, error)
	Stop() (app.Status, error)
	ClearLog() (app.Status, error)
	Diagnose() (app.Status, error)
}

type tickMsg time.Time

type statusMsg struct {
	status app.Status
	err    error
}

// Model is the bubbletea model for the dashboard
type Model struct {
	backend    Backend
	status     app.Status
	err        error
	confirming bool // stop was pressed, waiting for y/n
	loaded     bool
}

func New(backend Backend) Model {
	return Model{backend: backend}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.call(m.backend.Status), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) call(fn func() (app.Status, error)) tea.Cmd {
	return func() tea.Msg {
		st, err := fn()
		return statusMsg{status: st, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tea.Batch(m.call(m.backend.Status), tick())

	case statusMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.loaded = true
		}
		return m, nil

	case tea.KeyMsg:
		return m.onKey(msg.String())
	}
	return m, nil
}

func (m Model) onKey(key string) (tea.Model, tea.Cmd) {
	if m.confirming {
		m.confirming = false
		if key == "y" || key == "enter" {
			return m, m.call(m.backend.Stop)
		}
		return m, nil
	}

	switch key {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "b":
		if m.status.CanStart {
			return m, m.call(m.backend.Start)
		}
	case "s":
		if m.status.CanStop {
			m.confirming = true
		}
	case "c":
		return m, m.call(m.backend.ClearLog)
	case "t":
		return m, m.call(m.backend.Diagnose)
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Auto Backup"))
	b.WriteString("\n\n")

	if !m.loaded {
		if m.err != nil {
			b.WriteString(errorStyle.Render("daemon unavailable: " + m.err.Error()))
			b.WriteString("\n")
		} else {
			b.WriteString("connecting...\n")
		}
		b.WriteString(helpStyle("q quit"))
		return b.String()
	}

	st := m.status
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-14s", label)))
		b.WriteString(value)
		b.WriteString("\n")
	}

	row("Backup path:", st.Settings.BackupPath)
	row("Save path:", st.Settings.SavePath)
	row("Schedule:", st.Schedule)

	state := "idle"
	switch {
	case st.Busy:
		state = fmt.Sprintf("copying (%.0f%%)", st.Progress)
	case st.Running:
		state = "running"
	}
	row("State:", state)
	if st.Remaining != "" {
		row("Next backup in:", st.Remaining)
	}
	if st.LastResult != nil {
		row("Last backup:", st.LastResult.Path)
	}

	b.WriteString("\n")
	b.WriteString(logStyle.Render(strings.Join(lastLines(st.Log, logHeight), "\n")))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	if m.confirming {
		b.WriteString("Are you sure you want to stop the backup? (y/n)\n")
		return b.String()
	}

	b.WriteString(button("b backup", st.CanStart))
	b.WriteString("  ")
	b.WriteString(button("s stop", st.CanStop))
	b.WriteString("  ")
	b.WriteString(helpStyle("c clear log  t test  q quit"))
	return b.String()
}

func button(label string, enabled bool) string {
	if enabled {
		return enabledStyle.Render("[" + label + "]")
	}
	return disabledStyle.Render("[" + label + "]")
}

func lastLines(lines []string, n int) []string {
	if len(lines) == 0 {
		return []string{"(no log yet)"}
	}
	if len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}

// Run shows the dashboard until the user quits
func Run(backend Backend) error {
	_, err := tea.NewProgram(New(backend)).Run()
	return err
}
