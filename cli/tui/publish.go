package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/stencil/types"
)

// OutcomeMsg delivers one collected publish outcome to the view.
type OutcomeMsg struct {
	Outcome types.PublishOutcome
}

// DoneMsg signals that the batch (including cleanup) has concluded.
type DoneMsg struct {
	Report types.BatchReport
}

// PublishModel is the Bubble Tea model for a running publish batch.
// Rows appear in manifest order; each flips from a spinner to its terminal
// outcome as results arrive.
type PublishModel struct {
	artifacts []types.Artifact
	outcomes  map[string]types.PublishOutcome
	spin      spinner.Model
	done      bool
	quitting  bool
	width     int
}

// NewPublishModel creates a publish progress model for the given artifacts.
func NewPublishModel(artifacts []types.Artifact) PublishModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = PendingStyle

	return PublishModel{
		artifacts: artifacts,
		outcomes:  make(map[string]types.PublishOutcome, len(artifacts)),
		spin:      s,
	}
}

// Init implements tea.Model.
func (m PublishModel) Init() tea.Cmd {
	return m.spin.Tick
}

// Update implements tea.Model.
func (m PublishModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case OutcomeMsg:
		m.outcomes[msg.Outcome.Artifact.Name] = msg.Outcome
		return m, nil

	case DoneMsg:
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m PublishModel) View() string {
	if m.quitting || m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Publishing templates"))
	b.WriteString("\n\n")

	for _, a := range m.artifacts {
		b.WriteString(m.renderRow(a))
		b.WriteString("\n")
	}

	b.WriteString(MutedStyle.Render(fmt.Sprintf("\n%d/%d complete", len(m.outcomes), len(m.artifacts))))
	b.WriteString(HelpStyle.Render("\nPress q or Ctrl+C to abort"))
	return b.String()
}

func (m PublishModel) renderRow(a types.Artifact) string {
	name := NameStyle.Render(a.Name)

	outcome, finished := m.outcomes[a.Name]
	if !finished {
		return fmt.Sprintf("%s %s %s", m.spin.View(), name, PendingStyle.Render("publishing..."))
	}
	if outcome.OK {
		return fmt.Sprintf("  %s %s %s", name, SuccessStyle.Render("validated"),
			MutedStyle.Render(outcome.TrackingID))
	}
	// Show the first error line only; the full list is in the report.
	msg := outcome.Err
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return fmt.Sprintf("  %s %s %s", name, ErrorStyle.Render("failed"), MutedStyle.Render(msg))
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// NewPublishProgram creates the Bubble Tea program for a publish batch.
// The caller feeds it OutcomeMsg/DoneMsg via Send while the batch runs.
func NewPublishProgram(artifacts []types.Artifact) *tea.Program {
	return tea.NewProgram(NewPublishModel(artifacts))
}
