// Package colors provides centralized color output with TTY-aware defaults.
//
// Colors are automatically disabled when stdout is not a terminal (piped or
// redirected to a file). Use Init() to override based on CLI flags.
package colors

import (
	"io"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/fatih/color"
)

// Init allows overriding the auto-detected color setting.
//   - forceColor == nil: keep auto-detected value
//   - forceColor == true: force colors on (--color)
//   - forceColor == false: force colors off (--no-color)
func Init(forceColor *bool) {
	if forceColor != nil {
		color.NoColor = !*forceColor
	}
}

// Enabled returns true if colors are currently enabled.
func Enabled() bool {
	return !color.NoColor
}

func Bold() *color.Color     { return color.New(color.Bold) }
func Faint() *color.Color    { return color.New(color.Faint) }
func Red() *color.Color      { return color.New(color.FgRed) }
func Green() *color.Color    { return color.New(color.FgGreen) }
func Yellow() *color.Color   { return color.New(color.FgYellow) }
func BoldCyan() *color.Color { return color.New(color.Bold, color.FgCyan) }

// Status returns the color for a build status.
func Status(status string) *color.Color {
	switch status {
	case "fetched", "cached":
		return Green()
	case "failed":
		return Red()
	case "pending":
		return Yellow()
	default:
		return Faint()
	}
}

// JSON writes data to w, syntax highlighted when colors are enabled.
func JSON(w io.Writer, data []byte) error {
	if !Enabled() {
		_, err := w.Write(append(data, '\n'))
		return err
	}
	if err := quick.Highlight(w, string(data), "json", "terminal256", "nord"); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
