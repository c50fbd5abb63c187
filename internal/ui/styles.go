package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorMatch  = 114 // green
	colorMiss   = 203 // red
	colorMuted  = 245 // medium gray
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color. Used for keys and GUIDs.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderMatch returns s in the match (green) color.
func RenderMatch(s string) string { return render(colorMatch, s) }

// RenderMiss returns s in the mismatch (red) color.
func RenderMiss(s string) string { return render(colorMiss, s) }

// Verdict renders the outcome of a match as MATCH or NO MATCH.
func Verdict(matched bool) string {
	if matched {
		return RenderMatch("MATCH")
	}
	return RenderMiss("NO MATCH")
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
