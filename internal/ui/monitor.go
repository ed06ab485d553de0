package ui

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/lorahub/internal/telemetry"
)

// refreshInterval is how often the monitor redraws rates and ages.
const refreshInterval = 500 * time.Millisecond

// PageMsg tells the monitor that unit delivered one page.
type PageMsg struct {
	Unit uint8
	At   time.Time
}

type (
	tickMsg time.Time
	stopMsg struct{}
)

type unitCounter struct {
	pages int
	last  time.Time
}

// StreamMonitor is a Bubble Tea model that shows live page counts per
// unit while a stream runs. Ctrl+C or q calls cancel and quits.
type StreamMonitor struct {
	title  string
	cancel context.CancelFunc
	start  time.Time
	now    time.Time
	units  map[uint8]*unitCounter
	order  []uint8
	width  int
	quit   bool
}

// NewStreamMonitor creates a monitor. cancel may be nil.
func NewStreamMonitor(title string, cancel context.CancelFunc) StreamMonitor {
	now := time.Now()
	return StreamMonitor{
		title:  title,
		cancel: cancel,
		start:  now,
		now:    now,
		units:  make(map[uint8]*unitCounter),
		width:  GetTerminalWidth(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the refresh ticker.
func (m StreamMonitor) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model.
func (m StreamMonitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case PageMsg:
		c, ok := m.units[msg.Unit]
		if !ok {
			c = &unitCounter{}
			m.units[msg.Unit] = c
			m.order = append(m.order, msg.Unit)
			slices.Sort(m.order)
		}
		c.pages++
		c.last = msg.At
		return m, nil
	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()
	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			m.quit = true
			return m, tea.Quit
		}
	case stopMsg:
		m.quit = true
		return m, tea.Quit
	}
	return m, nil
}

// Pages returns the number of pages counted for unit.
func (m StreamMonitor) Pages(unit uint8) int {
	if c, ok := m.units[unit]; ok {
		return c.pages
	}
	return 0
}

// View implements tea.Model.
func (m StreamMonitor) View() string {
	var b strings.Builder
	elapsed := m.now.Sub(m.start)

	b.WriteString(ProgressLabelStyle.Render(m.title))
	b.WriteString(StepNoteStyle.Render(fmt.Sprintf("  %s", elapsed.Round(time.Second))))
	b.WriteString("\n  ")
	b.WriteString(RenderHorizontalDivider(m.width-4, "─"))
	b.WriteString("\n")

	if len(m.order) == 0 {
		b.WriteString(StepPendingStyle.Render("  " + StepMarkerPending + " waiting for pages"))
		b.WriteString("\n")
	}
	for _, unit := range m.order {
		c := m.units[unit]
		rate := 0.0
		if secs := elapsed.Seconds(); secs > 0 {
			rate = float64(c.pages) / secs
		}
		marker, style := StepMarkerComplete, StepCompleteStyle
		if !c.last.IsZero() && m.now.Sub(c.last) > 5*refreshInterval {
			marker, style = StepMarkerRunning, StepRunningStyle
		}
		fmt.Fprintf(&b, "  %s %s %s\n",
			style.Render(marker),
			ResultKeyStyle.Render(fmt.Sprintf("Unit %d", unit)),
			ResultValueStyle.Render(fmt.Sprintf("%6d pages  %5.1f/s  %4d samples",
				c.pages, rate, c.pages*telemetry.SamplesPerPage)))
	}

	if !m.quit {
		b.WriteString("\n")
		b.WriteString(StepNoteStyle.Render("  press q or Ctrl+C to stop"))
	}
	b.WriteString("\n")
	return b.String()
}

// Monitor runs a StreamMonitor program and doubles as a page sink.
type Monitor struct {
	prog *tea.Program
	done chan error
}

// StartMonitor starts the monitor on w, reading keys from stdin.
func StartMonitor(w io.Writer, title string, cancel context.CancelFunc) *Monitor {
	m := &Monitor{
		prog: tea.NewProgram(NewStreamMonitor(title, cancel), tea.WithOutput(w)),
		done: make(chan error, 1),
	}
	go func() {
		_, err := m.prog.Run()
		m.done <- err
	}()
	return m
}

// WritePage counts one page for unit.
func (m *Monitor) WritePage(unit uint8, _ *telemetry.Page) error {
	m.prog.Send(PageMsg{Unit: unit, At: time.Now()})
	return nil
}

// Close stops the program and restores the terminal.
func (m *Monitor) Close() error {
	m.prog.Send(stopMsg{})
	return <-m.done
}
