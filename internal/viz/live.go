package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/simstate/internal/integrators"
	"github.com/san-kum/simstate/internal/state"
	"github.com/san-kum/simstate/internal/system"
)

const historyCapacity = 600

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	panelStyle  = lipgloss.NewStyle().Padding(1, 2)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type TickMsg time.Time

// LiveModel steps a system in real time and renders the state as it
// evolves: stage ladder, tracked coordinate sparkline and counters.
type LiveModel struct {
	sys     *system.System
	ig      integrators.Integrator
	s       *state.State
	dt      float64
	tracked int

	running bool
	steps   int
	history []float64
	err     error
}

func NewLive(sys *system.System, ig integrators.Integrator, s *state.State, dt float64, tracked int) LiveModel {
	return LiveModel{
		sys:     sys,
		ig:      ig,
		s:       s,
		dt:      dt,
		tracked: tracked,
		running: true,
		history: make([]float64, 0, historyCapacity),
	}
}

func tick() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m LiveModel) Init() tea.Cmd { return tick() }

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		}
	case TickMsg:
		if m.running && m.err == nil {
			m.err = m.step()
		}
		return m, tick()
	}
	return m, nil
}

func (m *LiveModel) step() error {
	m.s.AutoUpdateDiscreteVariables()
	if err := m.ig.Step(m.sys, m.s, m.dt); err != nil {
		return err
	}
	if err := m.sys.Realize(m.s, state.StageReport); err != nil {
		return err
	}
	m.steps++

	y, err := m.s.Y()
	if err != nil {
		return err
	}
	if m.tracked >= 0 && m.tracked < len(y) {
		if len(m.history) == historyCapacity {
			m.history = m.history[1:]
		}
		m.history = append(m.history, y[m.tracked])
	}
	return nil
}

func (m LiveModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("simstate live"))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString(StageLadder(m.s))
	b.WriteString("\n")

	t, err := m.s.Time()
	if err == nil {
		b.WriteString(labelStyle.Render("time"))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%.3f", t)))
		b.WriteString("\n")
	}
	b.WriteString(labelStyle.Render("steps"))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.steps)))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("versions"))
	b.WriteString(valueStyle.Render(StageVersionsLine(m.s)))
	b.WriteString("\n")

	if len(m.history) > 1 {
		b.WriteString(labelStyle.Render(fmt.Sprintf("y[%d]", m.tracked)))
		b.WriteString(sparkline(m.history, 60))
		b.WriteString("\n")
	}

	status := "running"
	if !m.running {
		status = "paused"
	}
	b.WriteString(helpStyle.Render(fmt.Sprintf("[%s]  space pause/resume  q quit", status)))
	return panelStyle.Render(b.String())
}

func sparkline(values []float64, width int) string {
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	step := len(values) / width
	if step < 1 {
		step = 1
	}
	var b strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / rng
		idx := int(norm * float64(len(chars)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(chars) {
			idx = len(chars) - 1
		}
		b.WriteRune(chars[idx])
	}
	return b.String()
}
