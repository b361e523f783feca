// Package menu is a terminal rendition of the robot's 2x16 LCD: pick the
// autonomous routine, watch the axes, and jog the lift.
package menu

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/robart/internal/auton"
	"github.com/san-kum/robart/internal/robot"
)

const (
	lcdWidth  = 16
	pollSpeed = 100 * time.Millisecond
	historyN  = 60
	robotName = "Robart"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))

	lcd = lipgloss.NewStyle().
		Foreground(lipgloss.Color("16")).
		Background(lipgloss.Color("148")).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("238"))
)

// Source is the robot the menu watches and jogs.
type Source interface {
	Snapshot() robot.Snapshot
	NudgeLift(delta float64) float64
}

type state int

const (
	stateSelect state = iota
	stateLive
	stateLift
)

// Model is the bubbletea model behind the LCD screens.
type Model struct {
	state    state
	selector *auton.Selector
	routines *auton.Library
	src      Source
	liftStep float64

	snap    robot.Snapshot
	history []float64
	width   int
}

// New builds the menu. src may be nil when no robot is attached; the live
// and lift screens then show it as offline.
func New(selector *auton.Selector, routines *auton.Library, src Source, liftStep float64) *Model {
	return &Model{
		state:    stateSelect,
		selector: selector,
		routines: routines,
		src:      src,
		liftStep: liftStep,
		history:  make([]float64, 0, historyN),
		width:    80,
	}
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(pollSpeed, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tickMsg:
		m.poll()
		return m, tick()
	}
	return m, nil
}

func (m *Model) poll() {
	if m.src == nil {
		return
	}
	m.snap = m.src.Snapshot()
	m.history = append(m.history, m.snap.Lift.Target-m.snap.Lift.Position)
	if len(m.history) > historyN {
		m.history = m.history[1:]
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter", " ":
		m.state = (m.state + 1) % 3
		return m, nil
	}

	switch m.state {
	case stateSelect:
		switch msg.String() {
		case "left", "h":
			m.selector.Prev()
		case "right", "l":
			m.selector.Next()
		}
	case stateLift:
		if m.src == nil {
			return m, nil
		}
		switch msg.String() {
		case "left", "h":
			m.src.NudgeLift(-m.liftStep)
		case "right", "l":
			m.src.NudgeLift(m.liftStep)
		}
	}
	return m, nil
}

func (m Model) title(name string) string {
	if r, err := m.routines.Get(name); err == nil && r.Title != "" {
		return r.Title
	}
	return name
}

// Lines returns the two LCD lines for the current screen.
func (m Model) Lines() (string, string) {
	switch m.state {
	case stateSelect:
		return robotName + " will do:", m.title(m.selector.Selected())
	case stateLive:
		if m.src == nil {
			return "-- offline --", ""
		}
		return fmt.Sprintf("L %5.1f>%5.1f", m.snap.Lift.Position, m.snap.Lift.Target),
			fmt.Sprintf("M %5.1f>%5.1f", m.snap.MGL.Position, m.snap.MGL.Target)
	case stateLift:
		if m.src == nil {
			return "-- offline --", ""
		}
		return fmt.Sprintf("lift pos = %.1f", m.snap.Lift.Position), "v              ^"
	}
	return "", ""
}

// fit pads or truncates s to the LCD width.
func fit(s string) string {
	r := []rune(s)
	if len(r) > lcdWidth {
		r = r[:lcdWidth]
	}
	return string(r) + strings.Repeat(" ", lcdWidth-len(r))
}

func (m Model) View() string {
	var b strings.Builder

	l1, l2 := m.Lines()
	b.WriteString("\n")
	b.WriteString("  " + cyan.Render("1516B") + " " + dim.Render(robotName) + "\n")
	for _, line := range strings.Split(lcd.Render(fit(l1)+"\n"+fit(l2)), "\n") {
		b.WriteString("  " + line + "\n")
	}

	switch m.state {
	case stateSelect:
		b.WriteString(dim.Render("  ←→ routine   enter confirm   q quit") + "\n")
	case stateLive:
		if m.src != nil {
			status := green.Render("● tracking")
			if e := m.snap.Lift.Error; e > 2 || e < -2 {
				status = yellow.Render("○ moving")
			}
			b.WriteString("  " + status + dim.Render(fmt.Sprintf("  drive L%4d M%4d", m.snap.Lift.Drive, m.snap.MGL.Drive)) + "\n")
		}
		if len(m.history) > 1 {
			w := m.width - 14
			if w < 20 {
				w = 20
			}
			plot := asciigraph.Plot(m.history,
				asciigraph.Height(6),
				asciigraph.Width(w),
				asciigraph.Caption("lift error"))
			b.WriteString(dimmer.Render(plot) + "\n")
		}
		b.WriteString(dim.Render("  enter lift control   q quit") + "\n")
	case stateLift:
		b.WriteString(dim.Render("  ← down   → up   enter routine select   q quit") + "\n")
	}
	return b.String()
}

// Run shows the menu until the user quits.
func Run(m tea.Model) error {
	_, err := tea.NewProgram(m).Run()
	return err
}
