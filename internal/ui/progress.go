package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
	StepSkipped
)

// Step is one phase of a multi-phase operation.
type Step struct {
	Number  int
	Name    string
	Status  StepStatus
	Message string // e.g. "rssi -64", "round 2"
}

// Progress is a progress bar above a list of steps. The bar tracks the
// work inside the running step (chunks sent) rather than the step count.
type Progress struct {
	Label     string
	Steps     []Step
	Current   int     // running step, 1-based
	Percent   float64 // 0.0 - 1.0
	Width     int
	ShowBar   bool
	ShowSteps bool
	bar       progress.Model
}

// NewProgress creates a progress display with one pending step per name.
func NewProgress(label string, names ...string) *Progress {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Number: i + 1, Name: name}
	}
	p := &Progress{
		Label:     label,
		Steps:     steps,
		ShowBar:   true,
		ShowSteps: true,
	}
	return p.SetWidth(GetTerminalWidth())
}

// SetWidth sets the width for responsive rendering
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := min(max(width-24, 20), 50)
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
	)
	return p
}

// UpdateStep sets a step's status and message.
func (p *Progress) UpdateStep(number int, status StepStatus, message string) {
	if number < 1 || number > len(p.Steps) {
		return
	}
	p.Steps[number-1].Status = status
	p.Steps[number-1].Message = message
	if status == StepRunning {
		p.Current = number
	}
}

// StartStep marks a step as running and every earlier running step as
// complete.
func (p *Progress) StartStep(number int, message string) {
	for i := range p.Steps {
		if i+1 < number && p.Steps[i].Status == StepRunning {
			p.Steps[i].Status = StepComplete
		}
	}
	p.UpdateStep(number, StepRunning, message)
}

// CompleteStep marks a step as complete
func (p *Progress) CompleteStep(number int, message string) {
	p.UpdateStep(number, StepComplete, message)
}

// FailStep marks a step as failed
func (p *Progress) FailStep(number int, message string) {
	p.UpdateStep(number, StepFailed, message)
}

// SetPercent moves the bar.
func (p *Progress) SetPercent(percent float64) {
	p.Percent = min(max(percent, 0), 1)
}

// Render returns the styled progress display.
func (p *Progress) Render() string {
	var b strings.Builder
	if p.Label != "" {
		b.WriteString(ProgressLabelStyle.Render(p.Label))
		b.WriteString("\n\n")
	}
	if p.ShowBar {
		b.WriteString(p.RenderBar())
		b.WriteString("\n\n")
	}
	if p.ShowSteps {
		lines := make([]string, 0, len(p.Steps))
		for _, step := range p.Steps {
			lines = append(lines, p.RenderStep(step))
		}
		b.WriteString(strings.Join(lines, "\n"))
	}
	return b.String()
}

// RenderBar renders the bar with percentage and step counter.
func (p *Progress) RenderBar() string {
	return ProgressBarStyle().Render(fmt.Sprintf("%s  %3.0f%%  [%d/%d]",
		p.bar.ViewAs(p.Percent), p.Percent*100, p.Current, len(p.Steps)))
}

// RenderStep renders a single step line.
func (p *Progress) RenderStep(step Step) string {
	var (
		marker string
		style  lipgloss.Style
	)
	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker, style = StepMarkerSkipped, StepPendingStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  [%d/%d] ", step.Number, len(p.Steps))
	b.WriteString(style.Render(step.Name))
	// markers line up at one column
	b.WriteString(strings.Repeat(" ", max(45-lipgloss.Width(step.Name), 1)))
	b.WriteString(style.Render(marker))
	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}
	return b.String()
}

func (p *Progress) String() string {
	return p.Render()
}
