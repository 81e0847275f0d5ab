// Package tui implements the monitor terminal interface: a scrolling
// log of the events the process loop and the pitch-bend backend emit
// (Notify, DetunedNote, MidiParseErr, BackendLatency), plus a status
// line naming the active strategy. It watches; it does not edit any
// tuning configuration.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kjhall/adaptuner/pkg/process"
)

const maxLogLines = 200

// Line is one rendered, timestamped entry in the monitor log.
type Line struct {
	At       time.Time
	Text     string
	IsAdvice bool
}

// Model is the monitor's bubbletea model.
type Model struct {
	StrategyName string
	Width        int
	Height       int

	lines []Line
}

// NewModel constructs a Model naming the initially active strategy.
func NewModel(strategyName string) Model {
	return Model{StrategyName: strategyName, Width: 100, Height: 30}
}

// EventMsg wraps one AfterProcess event for delivery into the
// bubbletea Update loop. The producer goroutine (cmd/retune's wiring)
// sends these over a tea.Program's message channel via p.Send.
type EventMsg struct {
	Event process.AfterProcess
}

// StrategyChangedMsg updates the status line's active strategy name.
type StrategyChangedMsg struct {
	Name string
}

func (m Model) Init() tea.Cmd {
	return tea.EnterAltScreen
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		return m, nil
	case EventMsg:
		m.pushLine(renderEvent(msg.Event))
		return m, nil
	case StrategyChangedMsg:
		m.StrategyName = msg.Name
		return m, nil
	}
	return m, nil
}

func (m *Model) pushLine(line Line) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
}

// renderEvent turns one AfterProcess event into a Line. Only the
// variants a human watching the monitor cares about get distinct
// formatting; everything else falls through to a generic %+v line so
// no event is silently dropped from the log.
func renderEvent(e process.AfterProcess) Line {
	now := time.Now()
	switch ev := e.(type) {
	case process.Notify:
		return Line{At: now, Text: ev.Line}
	case process.DetunedNote:
		return Line{
			At:       now,
			IsAdvice: true,
			Text: fmt.Sprintf("note %d detuned: wanted %.2f, got %.2f (%s)",
				ev.Note, ev.ShouldBe, ev.Actual, ev.Explanation),
		}
	case process.MidiParseErr:
		return Line{At: now, IsAdvice: true, Text: "midi parse error: " + ev.Err}
	case process.NotifyFit:
		return Line{At: now, Text: "fit: " + ev.PatternName}
	case process.NotifyNoFit:
		return Line{At: now, Text: "no pattern fit"}
	case process.BackendLatency:
		return Line{At: now, Text: fmt.Sprintf("backend latency: %s", ev.SinceInput)}
	default:
		return Line{At: now, Text: fmt.Sprintf("%+v", ev)}
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	adviceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("adaptuner — strategy: %s", m.StrategyName)))
	b.WriteString("\n\n")

	visible := m.lines
	maxRows := m.Height - 4
	if maxRows < 1 {
		maxRows = 1
	}
	if len(visible) > maxRows {
		visible = visible[len(visible)-maxRows:]
	}
	for _, line := range visible {
		ts := timeStyle.Render(line.At.Format("15:04:05.000"))
		text := line.Text
		if line.IsAdvice {
			text = adviceStyle.Render(text)
		}
		b.WriteString(ts + "  " + text + "\n")
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render("q: quit"))
	return b.String()
}
