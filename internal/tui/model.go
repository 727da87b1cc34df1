// Package tui implements a slimmed transport/position status view — not a
// pattern editor (§1 non-goal: any user-facing pattern/automation editor UI
// is out of scope). It exists to watch a session's playback state the same
// way the teacher's pkg/tui watches a tracker song, minus the grid editor.
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dawsched/core/internal/session"
)

// Model is the status-view's bubbletea model.
type Model struct {
	s      *session.Session
	width  int
	height int

	status     session.Status
	loopStart  int64
	loopEnd    int64
	loopOn     bool
	statusMsg  string
}

// NewModel builds a status view over an already-wired session.
func NewModel(s *session.Session) Model {
	return Model{s: s, width: 80, height: 12}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, tickCmd())
}

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(_ time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.status = m.s.GetPlaybackStatus()
		m.loopStart, m.loopEnd, m.loopOn = m.s.GetLoopInfo()
		return m, tickCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.s.Stop()
			return m, tea.Quit
		case " ":
			return m, m.togglePlay()
		case "l":
			m.s.SetLoopEnabled(!m.loopOn)
			return m, nil
		}
	}
	return m, nil
}

func (m Model) togglePlay() tea.Cmd {
	return func() tea.Msg {
		if m.status.State.String() == "playing" {
			m.s.Pause()
		} else if err := m.s.Resume(); err != nil {
			_ = m.s.Play(nil)
		}
		return nil
	}
}

// View implements tea.Model.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("14")).
		Render("dawsched")

	stateStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	switch m.status.State.String() {
	case "playing":
		stateStyle = stateStyle.Foreground(lipgloss.Color("10")).Bold(true)
	case "paused":
		stateStyle = stateStyle.Foreground(lipgloss.Color("11")).Bold(true)
	}

	loopStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	if m.loopOn {
		loopStyle = loopStyle.Foreground(lipgloss.Color("6"))
	}

	pos := m.status.Position
	lines := []string{
		title,
		"",
		fmt.Sprintf("state  %s", stateStyle.Render(m.status.State.String())),
		fmt.Sprintf("bpm    %.1f", m.status.BPM),
		fmt.Sprintf("pos    %s  (step %.2f)", pos.Display, pos.StepFloat),
		fmt.Sprintf("loop   %s  [%d, %d)", loopStyle.Render(fmt.Sprintf("%v", m.loopOn)), m.loopStart, m.loopEnd),
		"",
		"space: play/pause   l: toggle loop   q: quit",
	}

	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}
