package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette
var (
	PrimaryColor = lipgloss.Color("#7D56F4")
	SuccessColor = lipgloss.Color("#43BF6D")
	ErrorColor   = lipgloss.Color("#FF5555")
	WarningColor = lipgloss.Color("#FFA500")
	MutedColor   = lipgloss.Color("#626262")
	TextColor    = lipgloss.Color("#FFFFFF")
)

const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100

	fallbackHeight = 24
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

// Header, progress and result text styles. Keys are muted and indented,
// values use the text colour.
var (
	HeaderTitleStyle      = fg(TextColor).Bold(true).PaddingLeft(2)
	HeaderCommandStyle    = fg(MutedColor).PaddingLeft(2)
	HeaderParamKeyStyle   = fg(MutedColor).PaddingLeft(2)
	HeaderParamValueStyle = fg(TextColor)

	ProgressLabelStyle = fg(TextColor).PaddingLeft(2)
	StepCompleteStyle  = fg(SuccessColor)
	StepRunningStyle   = fg(WarningColor)
	StepPendingStyle   = fg(MutedColor)
	StepNoteStyle      = fg(MutedColor).Italic(true)

	SuccessTitleStyle = fg(SuccessColor).Bold(true)
	ErrorTitleStyle   = fg(ErrorColor).Bold(true)
	WarningTitleStyle = fg(WarningColor).Bold(true)
	ErrorMessageStyle = fg(ErrorColor)
	ResultKeyStyle    = fg(MutedColor).Width(15)
	ResultValueStyle  = fg(TextColor)

	TroubleshootingTitleStyle = fg(MutedColor).Bold(true)
	TroubleshootingItemStyle  = fg(MutedColor)

	// Unit table cells: acknowledged units stand out, silent ones are red.
	UnitAckStyle    = fg(SuccessColor).Bold(true)
	UnitSilentStyle = fg(ErrorColor)
)

// Step and result markers
const (
	StepMarkerComplete = "✓"
	StepMarkerRunning  = "●"
	StepMarkerPending  = "·"
	StepMarkerSkipped  = "⊘"
	SuccessMarker      = "✓"
	FailureMarker      = "✗"
	WarningMarker      = "⚠"
)

func clampWidth(w int) int {
	return max(MinTerminalWidth, min(w, MaxContentWidth))
}

// GetTerminalWidth returns the stdout width clamped to the supported range.
// When stdout is not a terminal the minimum width is used.
func GetTerminalWidth() int {
	w, _ := GetTerminalSize()
	return w
}

// GetTerminalSize returns the clamped width and the raw height of stdout.
func GetTerminalSize() (int, int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return MinTerminalWidth, fallbackHeight
	}
	return clampWidth(w), h
}

// HeaderBorderStyle frames command headers.
func HeaderBorderStyle(width int) lipgloss.Style {
	return BoxStyle(width, lipgloss.RoundedBorder(), PrimaryColor).Padding(0)
}

// BoxStyle returns the frame used by result, warning and unit boxes.
func BoxStyle(width int, border lipgloss.Border, color lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(border).
		BorderForeground(color).
		Width(width-2).
		Padding(0, 2)
}

// TroubleshootingBoxStyle is nested inside a failure box, hence the extra
// indentation.
func TroubleshootingBoxStyle(width int) lipgloss.Style {
	return BoxStyle(width-6, lipgloss.RoundedBorder(), MutedColor).Padding(0, 1)
}

// ProgressBarStyle indents the OTA progress bar to line up with step text.
func ProgressBarStyle() lipgloss.Style {
	return lipgloss.NewStyle().PaddingLeft(2)
}

// RenderHorizontalDivider draws a line of char across width columns.
func RenderHorizontalDivider(width int, char string) string {
	return fg(PrimaryColor).Render(strings.Repeat(char, width))
}
