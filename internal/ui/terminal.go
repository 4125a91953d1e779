package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether ANSI styling should be applied to
// stdout, honoring NO_COLOR, CLICOLOR_FORCE, and CLICOLOR before
// falling back to TTY detection.
func ShouldUseColor() bool {
	switch {
	case os.Getenv("NO_COLOR") != "":
		// https://no-color.org: any non-empty value disables color.
		return false
	case strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1":
		return true
	case strings.TrimSpace(os.Getenv("CLICOLOR")) == "0":
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
