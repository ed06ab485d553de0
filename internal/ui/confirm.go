package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmPhrase is what the user types to go ahead.
const ConfirmPhrase = "PROGRAM"

// Confirm shows a warning box on out and asks for ConfirmPhrase on in.
// It returns true only if the user typed it.
func Confirm(in io.Reader, out io.Writer, title string, warnings []string) bool {
	width := GetTerminalWidth()

	lines := []string{
		"",
		lipgloss.NewStyle().Foreground(WarningColor).Bold(true).Render("   ⚠  WARNING  ─  " + title),
		"",
	}
	for _, w := range warnings {
		lines = append(lines, lipgloss.NewStyle().Foreground(TextColor).Render("   • "+w))
	}
	lines = append(lines, "")

	box := BoxStyle(width, lipgloss.DoubleBorder(), WarningColor).Render(strings.Join(lines, "\n"))
	_, _ = fmt.Fprintln(out, box)
	_, _ = fmt.Fprintln(out)

	prompt := lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	_, _ = fmt.Fprint(out, prompt.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", ConfirmPhrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}
	if strings.TrimSpace(input) == ConfirmPhrase {
		return true
	}
	_, _ = fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	return false
}

// ConfirmProgramming asks before reflashing unit id with an image of size bytes.
func ConfirmProgramming(in io.Reader, out io.Writer, id uint8, size int) bool {
	return Confirm(in, out, "FIRMWARE UPDATE", []string{
		fmt.Sprintf("Unit %d will be reflashed (%d bytes)", id, size),
		"The unit stops logging until the update completes",
		"Keep the unit powered and in range until the result is shown",
	})
}
