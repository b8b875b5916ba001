package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirm prints a warning box listing warnings and asks a y/N question.
// Anything other than "y" or "yes" (including EOF) declines.
func Confirm(in io.Reader, out io.Writer, title string, warnings []string, question string) bool {
	width := GetTerminalWidth()

	lines := []string{
		"",
		warnStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)),
		"",
	}
	for _, warning := range warnings {
		lines = append(lines, textStyle.Render("   • "+warning))
	}
	lines = append(lines, "")

	fmt.Fprintln(out, boxStyle(width, WarningColor).Render(strings.Join(lines, "\n")))
	fmt.Fprintln(out)
	fmt.Fprint(out, warnStyle.Render(question+" [y/N]: "))

	input, err := bufio.NewReader(in).ReadString('\n')
	fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}
	fmt.Fprintln(out, mutedStyle.Render("  Operation cancelled."))
	return false
}

// ConfirmDelete asks before removing a file from the display's SD card.
func ConfirmDelete(in io.Reader, out io.Writer, path string) bool {
	return Confirm(in, out, "DELETE FROM DISPLAY",
		[]string{
			"This removes " + path + " from the display's SD card",
			"A layout that references the file will show an empty tile",
		},
		"Delete "+path+"?",
	)
}
