package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/dronearm/pkg/flight"
)

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Axis colors for the commanded endpoint position.
var axes = []struct {
	name  string
	color string
}{
	{"x", "196"}, // red
	{"y", "46"},  // green
	{"z", "51"},  // cyan
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type dashboardModel struct {
	seq    *flight.Sequencer
	d      *flight.Dispatcher
	chart  *streamlinechart.Model
	logs   <-chan string
	cancel context.CancelFunc

	width    int
	height   int
	lines    []string
	steps    []flight.Event
	stopping bool
	finished bool
}

// Messages from the sequencer
type eventMsg flight.Event
type logMsg string
type doneMsg struct{ err error }

func waitForEvent(seq *flight.Sequencer) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-seq.Events())
	}
}

func waitForLog(logs <-chan string) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-logs)
	}
}

func initialDashboard(seq *flight.Sequencer, d *flight.Dispatcher, logs <-chan string, cancel context.CancelFunc) dashboardModel {
	// Neutral sits at x=0.65; the box and presets stay within [-0.5, 1].
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-0.5, 1.0),
	)
	for _, a := range axes {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(a.color))
		chart.SetDataSetStyles(a.name, runes.ThinLineStyle, style)
	}

	return dashboardModel{
		seq:    seq,
		d:      d,
		chart:  &chart,
		logs:   logs,
		cancel: cancel,
	}
}

func (m *dashboardModel) addLog(msg string) {
	m.lines = append(m.lines, msg)
	if len(m.lines) > maxLogs {
		m.lines = m.lines[len(m.lines)-maxLogs:]
	}
}

func (m *dashboardModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize - 1
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.seq),
		waitForLog(m.logs),
	)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := m.chartSize()
		m.chart.Resize(w, h)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// Run stops the arm on cancel; quit once it has returned.
			if !m.stopping {
				m.stopping = true
				m.cancel()
			}
			return m, nil
		}

	case eventMsg:
		e := flight.Event(msg)
		m.steps = append(m.steps, e)
		for _, wp := range e.Waypoints {
			m.chart.PushDataSet("x", wp.X)
			m.chart.PushDataSet("y", wp.Y)
			m.chart.PushDataSet("z", wp.Z)
		}
		m.chart.DrawAll()
		return m, waitForEvent(m.seq)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.logs)

	case doneMsg:
		m.finished = true
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.addLog(msg.err.Error())
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.finished {
		return "Stop successful, exiting...\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("dronearm"))
	sb.WriteString(fmt.Sprintf(" - %s", m.d.Phase()))
	if m.stopping {
		sb.WriteString(failStyle.Render("  stopping arm..."))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend())
	sb.WriteString("  ")
	sb.WriteString(renderSteps(m.steps))
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.lines) == 0 {
		logLines = statusStyle.Render("Press 'q' to stop the arm and quit")
	} else {
		logLines = strings.Join(m.lines, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	var items []string
	for _, a := range axes {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(a.color)).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+a.name)
	}
	return strings.Join(items, "  ")
}

func renderSteps(steps []flight.Event) string {
	var items []string
	for _, e := range steps {
		if e.OK {
			items = append(items, okStyle.Render(e.Label))
		} else {
			items = append(items, failStyle.Render(e.Label+"!"))
		}
	}
	return statusStyle.Render("steps: ") + strings.Join(items, statusStyle.Render(" → "))
}
