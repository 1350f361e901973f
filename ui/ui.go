package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/ZacxDev/mpymake/executor"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/exp/slices"

	tea "github.com/charmbracelet/bubbletea"
)

// Run displays live target status while a build runs in another
// goroutine. Closing done quits the program.
func Run(status executor.StatusManager, done <-chan struct{}) error {
	p := tea.NewProgram(newModel(status))
	go func() {
		<-done
		p.Quit()
	}()
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

type model struct {
	viewport      viewport.Model
	status        executor.StatusManager
	done          bool
	selectedIdx   int
	logView       viewport.Model
	showingLogs   bool
	logAutoscroll bool
}

func newModel(status executor.StatusManager) *model {
	return &model{
		viewport:      viewport.New(160, 40),
		status:        status,
		logView:       viewport.New(160, 20),
		logAutoscroll: true,
	}
}

func (m *model) Init() tea.Cmd {
	return tickCmd()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	snap := m.status.Snapshot()

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.done = true
			return m, tea.Quit
		case "up", "k":
			if !m.showingLogs {
				if n := len(snap); n > 0 {
					m.selectedIdx = (m.selectedIdx - 1 + n) % n
				}
			} else {
				m.logAutoscroll = false
				m.logView, cmd = m.logView.Update(msg)
				cmds = append(cmds, cmd)
			}
		case "down", "j":
			if !m.showingLogs {
				if n := len(snap); n > 0 {
					m.selectedIdx = (m.selectedIdx + 1) % n
				}
			} else {
				m.logView, cmd = m.logView.Update(msg)
				cmds = append(cmds, cmd)
			}
		case "enter", " ":
			m.showingLogs = !m.showingLogs
			if m.showingLogs {
				m.logAutoscroll = true
			}
		case "esc":
			m.showingLogs = false
		}
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 1
		m.logView.Width = msg.Width
		m.logView.Height = msg.Height / 2
		return m, nil
	case tickMsg:
		if !m.done {
			cmds = append(cmds, tickCmd())
		}
	}

	if !m.showingLogs {
		m.viewport.SetContent(m.statusView(snap))
	} else if m.logAutoscroll {
		m.updateLogView(snap)
	}
	return m, tea.Batch(cmds...)
}

func (m *model) View() string {
	if m.done {
		return "Exiting...\n"
	}
	var sb strings.Builder
	sb.WriteString(m.viewport.View())
	if m.showingLogs {
		sb.WriteString("\n\nOutput:\n")
		sb.WriteString(m.logView.View())
	}
	sb.WriteString("\n\033[1mPress q to quit, enter/space to toggle logs, up/down or j/k to navigate\033[0m")
	return sb.String()
}

func sortedNames(snap map[string]executor.TargetStatus) []string {
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (m *model) statusView(snap map[string]executor.TargetStatus) string {
	var sb strings.Builder
	sb.WriteString("mpymake Status Report\n\n")

	for i, name := range sortedNames(snap) {
		status := snap[name]

		var duration time.Duration
		if !status.EndTime.IsZero() {
			duration = status.EndTime.Sub(status.StartTime)
		} else if !status.StartTime.IsZero() {
			duration = time.Since(status.StartTime)
		}

		statusColor := lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
		switch status.Status {
		case executor.StatusCompleted:
			statusColor = statusColor.Foreground(lipgloss.Color("82"))
		case executor.StatusFailed:
			statusColor = statusColor.Foreground(lipgloss.Color("160"))
		case executor.StatusUpToDate:
			statusColor = statusColor.Foreground(lipgloss.Color("243"))
		}

		prefix := "  "
		if i == m.selectedIdx {
			prefix = "> "
		}

		sb.WriteString(fmt.Sprintf(
			"%s%-30s | %-10s | %-10s\n",
			prefix,
			name,
			statusColor.Render(status.Status),
			duration.Round(time.Millisecond),
		))
	}

	return sb.String()
}

func (m *model) updateLogView(snap map[string]executor.TargetStatus) {
	names := sortedNames(snap)
	if m.selectedIdx >= len(names) {
		return
	}

	status := snap[names[m.selectedIdx]]
	logContent := strings.Join(status.LogLines, "\n")
	if logContent == "" {
		m.logView.SetContent("This target has not produced output yet")
	} else {
		m.logView.SetContent(logContent)
	}
	if m.logAutoscroll {
		m.logView.GotoBottom()
	}
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
