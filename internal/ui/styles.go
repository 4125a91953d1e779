// Package ui holds terminal styling for the watch and status views.
package ui

import "fmt"

// ANSI256 color codes.
const (
	colorAuthor = 74  // blue, message authors
	colorTitle  = 179 // amber, song titles
	colorMuted  = 245 // gray, timestamps and counts
	colorFailed = 167 // red, failed sends
	colorLive   = 71  // green, on-air badge
)

var noColor bool

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// Author styles a display name.
func Author(s string) string { return paint(colorAuthor, s) }

// Title styles a song title.
func Title(s string) string { return paint(colorTitle, s) }

// Muted styles timestamps, vote counts, and other secondary text.
func Muted(s string) string { return paint(colorMuted, s) }

// Failed styles a failed-send marker.
func Failed(s string) string { return paint(colorFailed, s) }

// Live styles the on-air badge.
func Live(s string) string { return paint(colorLive, s) }
