// Package cli renders switchd command output: aligned tables, dotted check
// lines and coloured status words.
package cli

import (
	"os"
	"strings"
)

// colorEnabled is false when NO_COLOR env var is set (per no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

const (
	ansiRed    = "31"
	ansiGreen  = "32"
	ansiYellow = "33"
)

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func Green(s string) string  { return paint(ansiGreen, s) }
func Yellow(s string) string { return paint(ansiYellow, s) }
func Red(s string) string    { return paint(ansiRed, s) }

// statusColors colours the words switchd reports. Anything not listed is
// shown in yellow.
var statusColors = map[string]string{
	"ok":       ansiGreen,
	"up":       ansiGreen,
	"resolved": ansiGreen,
	"down":     ansiRed,
	"failed":   ansiRed,
	"critical": ansiRed,
}

// Status colours an outcome, link or resolution word.
func Status(s string) string {
	if code, ok := statusColors[s]; ok {
		return paint(code, s)
	}
	return paint(ansiYellow, s)
}

// DotPad pads name with dots to the given width.
// Example: DotPad("identity", 12) returns "identity ...".
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	return name + " " + strings.Repeat(".", width-len(name)-1)
}
