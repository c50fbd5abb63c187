package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether output to stdout should carry ANSI colors.
func ShouldUseColor() bool {
	return colorEnabled(os.Stdout)
}

// colorEnabled applies NO_COLOR (https://no-color.org), then CLICOLOR_FORCE=1
// and CLICOLOR=0, and otherwise colors only when f is a terminal.
func colorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
