package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// UnitTable shows which of the requested group units answered.
type UnitTable struct {
	Title     string // e.g. "Range check"
	Requested uint8
	Accepted  uint8
	Width     int
}

// NewUnitTable creates a table for a group command outcome.
func NewUnitTable(title string, requested, accepted uint8) *UnitTable {
	return &UnitTable{Title: title, Requested: requested, Accepted: accepted, Width: GetTerminalWidth()}
}

// Missing returns the requested units that stayed silent.
func (t *UnitTable) Missing() uint8 {
	return t.Requested &^ t.Accepted
}

// Render returns the styled table.
func (t *UnitTable) Render() string {
	width := max(t.Width, MinTerminalWidth)

	var rows []string
	for unit := 1; unit <= 8; unit++ {
		bit := uint8(1) << (unit - 1)
		if t.Requested&bit == 0 {
			continue
		}
		status := UnitSilentStyle.Render(FailureMarker + " no reply")
		if t.Accepted&bit != 0 {
			status = UnitAckStyle.Render(SuccessMarker + " acknowledged")
		}
		rows = append(rows, fmt.Sprintf("   %s  %s", ResultKeyStyle.Render(fmt.Sprintf("Unit %d", unit)), status))
	}

	answered := countBits(t.Requested & t.Accepted)
	summary := fmt.Sprintf("   %d of %d units answered (mask 0b%08b)", answered, countBits(t.Requested), t.Accepted)

	color, style := SuccessColor, SuccessTitleStyle
	if t.Missing() != 0 {
		color, style = WarningColor, lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	}
	lines := []string{"", style.Render("   " + strings.ToUpper(t.Title)), ""}
	lines = append(lines, rows...)
	lines = append(lines, "", ResultValueStyle.Render(summary), "")

	return BoxStyle(width, lipgloss.RoundedBorder(), color).Render(strings.Join(lines, "\n"))
}

func (t *UnitTable) String() string {
	return t.Render()
}

func countBits(b uint8) int {
	n := 0
	for ; b != 0; b &= b - 1 {
		n++
	}
	return n
}
