package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/fmusim/internal/events"
	"github.com/san-kum/fmusim/internal/fmi"
	"github.com/san-kum/fmusim/internal/kernel"
)

const (
	historyCapacity = 600
	maxStepsPerTick = 1024
	graphWidth      = 60
	graphHeight     = 8
	barWidth        = 40
)

var (
	statsStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(0, 2).Width(40)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// StartFunc initializes a fresh run. It is called once by NewModel and
// again on every reset.
type StartFunc func() (*kernel.Context, error)

// Model is a bubbletea program that advances a kernel.Context a few steps
// per tick and plots the recorded outputs.
type Model struct {
	label string
	start StartFunc

	ctx    *kernel.Context
	result *kernel.Result
	err    error

	names    []string
	history  [][]float64
	times    []float64
	selected int

	running      bool
	stepsPerTick int
	frame        int
	showHelp     bool
	notice       string
}

// NewModel starts the first run right away so that initialization errors
// surface before the program takes over the terminal.
func NewModel(label string, start StartFunc) (Model, error) {
	m := Model{
		label:        label,
		start:        start,
		running:      true,
		stepsPerTick: 1,
	}
	if err := m.reset(); err != nil {
		return Model{}, err
	}
	return m, nil
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.finish()
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.finish()
			if err := m.reset(); err != nil {
				m.err = err
			}
		case "tab":
			if len(m.names) > 0 {
				m.selected = (m.selected + 1) % len(m.names)
			}
		case "shift+tab":
			if len(m.names) > 0 {
				m.selected = (m.selected + len(m.names) - 1) % len(m.names)
			}
		case "+", "=":
			m.stepsPerTick = min(m.stepsPerTick*2, maxStepsPerTick)
		case "-", "_":
			m.stepsPerTick = max(m.stepsPerTick/2, 1)
		case "n":
			m.advance(1)
		case "?":
			m.showHelp = !m.showHelp
		}
		return m, nil

	case TickMsg:
		m.frame++
		if m.running {
			m.advance(m.stepsPerTick)
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) reset() error {
	ctx, err := m.start()
	if err != nil {
		return err
	}
	m.ctx = ctx
	m.result = nil
	m.err = nil
	m.notice = ""
	m.names = m.names[:0]
	m.history = m.history[:0]
	m.times = m.times[:0]

	rec := ctx.Trajectory()
	if rec == nil {
		m.finish()
		return nil
	}
	for _, v := range rec.Variables() {
		m.names = append(m.names, v.Name)
		m.history = append(m.history, make([]float64, 0, historyCapacity))
	}
	if m.selected >= len(m.names) {
		m.selected = 0
	}
	m.record()
	return nil
}

// advance runs up to n steps and terminates the run once it is done.
func (m *Model) advance(n int) {
	if m.ctx == nil || m.result != nil {
		return
	}
	for i := 0; i < n && !m.ctx.Done(); i++ {
		before := m.ctx.Counters().Steps
		status, err := m.ctx.Step()
		if err != nil {
			m.err = err
			if status == fmi.Discard {
				m.running = false
				m.notice = "step rejected by model, paused"
			}
			break
		}
		if m.ctx.Counters().Steps > before {
			m.record()
		}
	}
	if m.ctx.Done() {
		m.finish()
	}
}

func (m *Model) record() {
	rec := m.ctx.Trajectory()
	if rec == nil {
		return
	}
	m.times = appendBounded(m.times, m.ctx.Time())
	for i := range m.history {
		if v, ok := rec.Last(i); ok {
			m.history[i] = appendBounded(m.history[i], v)
		}
	}
}

func appendBounded(s []float64, v float64) []float64 {
	if len(s) >= historyCapacity {
		copy(s, s[1:])
		s = s[:len(s)-1]
	}
	return append(s, v)
}

func (m *Model) finish() {
	if m.ctx == nil || m.result != nil {
		return
	}
	if err := m.ctx.Terminate(); err != nil && m.err == nil {
		m.err = err
	}
	m.result = m.ctx.Result()
	m.running = false
}

// Result is the terminated run, or nil while it is still in progress.
func (m Model) Result() *kernel.Result { return m.result }

// Err is the last failure reported by the kernel.
func (m Model) Err() error { return m.err }

// Selected is the name of the plotted variable.
func (m Model) Selected() string {
	if len(m.names) == 0 {
		return ""
	}
	return m.names[m.selected]
}

func (m Model) status() string {
	switch {
	case m.result != nil && m.result.Err != nil:
		return StatusFailed.Render("✖ FAILED")
	case m.result != nil && m.result.TerminatedByModel:
		return StatusPaused.Render("■ TERMINATED BY MODEL")
	case m.result != nil:
		return StatusRunning.Render("■ DONE")
	case m.running:
		return StatusRunning.Render(AnimatedSpinner(m.frame) + " RUNNING")
	}
	return StatusPaused.Render("❚❚ PAUSED")
}

// View renders the header, stats panel, plot and key hints.
func (m Model) View() string {
	var s strings.Builder
	s.WriteString(HeaderStyle.Render(Title.Render("fmusim")+" :: "+m.label) + "  " + m.status() + "\n\n")

	t, start, stop, h := 0.0, 0.0, 0.0, 0.0
	var counters events.Counters
	statusText := ""
	if m.result != nil {
		t, start, stop, h = m.result.EndTime, m.result.Experiment.StartTime, m.result.Experiment.StopTime, m.result.Experiment.StepSize
		counters = m.result.Counters
		statusText = m.result.StatusText
	} else if m.ctx != nil {
		t, start, stop, h = m.ctx.Time(), m.ctx.StartTime(), m.ctx.StopTime(), m.ctx.StepSize()
		counters = m.ctx.Counters()
		statusText = m.ctx.Status().String()
	}

	var stats strings.Builder
	stats.WriteString(Metric("time", fmt.Sprintf("%.4f / %g", t, stop)) + "\n")
	stats.WriteString(Metric("step size", fmt.Sprintf("%g", h)) + "\n")
	stats.WriteString(Metric("steps", fmt.Sprintf("%d", counters.Steps)) + "\n")
	stats.WriteString(Metric("steps/tick", fmt.Sprintf("%d", m.stepsPerTick)) + "\n")
	stats.WriteString(Metric("time events", fmt.Sprintf("%d", counters.TimeEvents)) + "\n")
	stats.WriteString(Metric("state events", fmt.Sprintf("%d", counters.StateEvents)) + "\n")
	stats.WriteString(Metric("step events", fmt.Sprintf("%d", counters.StepEvents)) + "\n")
	stats.WriteString(Metric("model status", statusText) + "\n")
	for i, name := range m.names {
		label := name
		if i == m.selected {
			label = "▸ " + name
		}
		value := "-"
		if n := len(m.history[i]); n > 0 {
			value = fmt.Sprintf("%.5g", m.history[i][n-1])
		}
		stats.WriteString(Metric(label, value) + "\n")
	}

	graph := Subtle.Render("no outputs")
	if len(m.names) > 0 {
		graph = Plot(m.history[m.selected], graphWidth, graphHeight, m.names[m.selected])
	}
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, GraphStyle.Render(graph), statsStyle.Render(stats.String())))
	s.WriteString("\n")

	fraction := 1.0
	if stop > start {
		fraction = (t - start) / (stop - start)
	}
	s.WriteString(ProgressBar(fraction, barWidth) + fmt.Sprintf(" %3.0f%%\n", fraction*100))

	if m.notice != "" {
		s.WriteString(StatusPaused.Render(m.notice) + "\n")
	}
	if m.err != nil {
		s.WriteString(StatusFailed.Render(m.err.Error()) + "\n")
	}

	if m.showHelp {
		s.WriteString(helpStyle.Render(strings.Join([]string{
			"space  pause/resume",
			"n      single step",
			"+/-    steps per tick",
			"tab    next variable",
			"r      restart run",
			"q      terminate and quit",
		}, "\n")))
	} else {
		s.WriteString(KeyHint.Render("space: pause • n: step • +/-: speed • tab: variable • r: restart • ?: help • q: quit"))
	}
	return s.String()
}
