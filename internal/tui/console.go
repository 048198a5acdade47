// Package tui implements the interactive console: a live fleet table with
// one-key enable/disable.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pifleet.dev/pifleet/internal/brand"
	"pifleet.dev/pifleet/internal/fleet"
	"pifleet.dev/pifleet/internal/pihole"
)

const refreshInterval = 5 * time.Second

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("243"))
	enabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type statusMsg []pihole.InstanceStatus

type actionMsg struct {
	enabled bool
	results []pihole.InstanceActionResult
}

type tickMsg time.Time

// Model is the bubbletea model for the fleet console.
type Model struct {
	orch     *fleet.Orchestrator
	statuses []pihole.InstanceStatus
	message  string
	loading  bool
}

// New creates a console model over the orchestrator.
func New(orch *fleet.Orchestrator) Model {
	return Model{orch: orch, loading: true}
}

// Run starts the console and blocks until the user quits.
func Run(orch *fleet.Orchestrator) error {
	_, err := tea.NewProgram(New(orch), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) fetchStatus() tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return statusMsg(orch.GetAllStatus(ctx))
	}
}

func (m Model) setBlocking(enabled bool) tea.Cmd {
	orch := m.orch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return actionMsg{enabled: enabled, results: orch.SetAllBlocking(ctx, enabled, 0)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, m.fetchStatus()
		case "e":
			m.message = "Enabling blocking on all instances..."
			return m, m.setBlocking(true)
		case "d":
			m.message = "Disabling blocking on all instances..."
			return m, m.setBlocking(false)
		}

	case statusMsg:
		m.statuses = msg
		m.loading = false
		return m, nil

	case actionMsg:
		failed := 0
		for _, r := range msg.results {
			if r.Error != nil {
				failed++
			}
		}
		verb := "disabled"
		if msg.enabled {
			verb = "enabled"
		}
		if failed == 0 {
			m.message = fmt.Sprintf("Blocking %s on %d instances", verb, len(msg.results))
		} else {
			m.message = fmt.Sprintf("Blocking %s; %d of %d instances failed", verb, failed, len(msg.results))
		}
		return m, m.fetchStatus()

	case tickMsg:
		return m, tea.Batch(m.fetchStatus(), tick())
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(brand.Name+" Console") + "\n\n")

	if m.loading && m.statuses == nil {
		b.WriteString("Loading fleet status...\n")
	} else {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-16s %-10s %-8s %12s %10s %8s",
			"INSTANCE", "BLOCKING", "TIMER", "QUERIES", "BLOCKED", "%")) + "\n")

		for _, st := range m.statuses {
			b.WriteString(renderRow(st) + "\n")
		}
	}

	if m.message != "" {
		b.WriteString("\n" + m.message + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("e enable all • d disable all • r refresh • q quit"))
	return b.String()
}

func renderRow(st pihole.InstanceStatus) string {
	if st.Error != nil {
		return errorStyle.Render(fmt.Sprintf("%-16s %-10s %s", st.Name, "ERROR", *st.Error))
	}

	state, style := "disabled", disabledStyle
	if st.Blocking != nil && *st.Blocking {
		state, style = "enabled", enabledStyle
	}

	timer := "-"
	if st.Timer > 0 {
		timer = (time.Duration(st.Timer) * time.Second).String()
	}

	return style.Render(fmt.Sprintf("%-16s %-10s %-8s %12d %10d %7.1f%%",
		st.Name, state, timer, st.TotalQueries, st.BlockedQueries, st.PercentBlocked))
}
