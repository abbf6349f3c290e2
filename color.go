// Colour policy for messages on stderr. Colour defaults on when stderr is
// a terminal, and off under NO_COLOR or TERM=dumb.

package main

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var stderr io.Writer = os.Stderr

var (
	echoColor   = color.New(color.Bold)
	noticeColor = color.New(color.FgCyan, color.Bold)
)

// initColor applies the --color flag: "auto", "always", or "never".
func initColor(mode string) {
	switch mode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		color.NoColor = os.Getenv("NO_COLOR") != "" ||
			os.Getenv("TERM") == "dumb" ||
			!isatty.IsTerminal(os.Stderr.Fd())
	}
}

// echoLine prints a recipe line before execution.
func echoLine(text string) {
	echoColor.Fprintln(stderr, text)
}

// notice prints a status message, like the cached-recipe skip notice.
func notice(format string, args ...any) {
	noticeColor.Fprintf(stderr, format+"\n", args...)
}
