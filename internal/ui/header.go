package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Param is one labelled value shown in a header or result box.
type Param struct {
	Key   string
	Value string
}

// Header is the command banner: title, command line and parameters.
type Header struct {
	Title   string  // e.g., "FIRMWARE UPDATE"
	Command string  // e.g., "acclogger program --units 42"
	Params  []Param // shown in order
	Width   int
}

// NewHeader creates a header sized to the terminal.
func NewHeader(title, command string, params ...Param) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header.
func (h *Header) Render() string {
	width := max(h.Width, MinTerminalWidth)

	top := lipgloss.JoinVertical(lipgloss.Left,
		HeaderTitleStyle.Render(strings.ToUpper(h.Title)),
		HeaderCommandStyle.Render(h.Command),
	)
	if len(h.Params) == 0 {
		return HeaderBorderStyle(width).Render(top)
	}

	keyWidth := 0
	for _, p := range h.Params {
		keyWidth = max(keyWidth, lipgloss.Width(p.Key)+1)
	}
	lines := make([]string, 0, len(h.Params))
	for _, p := range h.Params {
		key := HeaderParamKeyStyle.Render(p.Key + ":" + strings.Repeat(" ", keyWidth-lipgloss.Width(p.Key)-1))
		lines = append(lines, key+" "+HeaderParamValueStyle.Render(p.Value))
	}

	divider := RenderHorizontalDivider(max(width-6, 10), "─")
	content := lipgloss.JoinVertical(lipgloss.Left, top, divider, strings.Join(lines, "\n"))
	return HeaderBorderStyle(width).Render(content)
}

func (h *Header) String() string {
	return h.Render()
}
