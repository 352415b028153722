package ui

import (
	"os"
	"sync"

	"github.com/muesli/termenv"
)

var (
	colorOnce sync.Once
	useColor  bool
)

// ShouldUseColor reports whether styled output is appropriate: stdout is a
// terminal with color support, and neither NO_COLOR nor TALLY_NO_COLOR is
// set.
func ShouldUseColor() bool {
	colorOnce.Do(func() {
		if os.Getenv("NO_COLOR") != "" || os.Getenv("TALLY_NO_COLOR") != "" {
			useColor = false
			return
		}
		out := termenv.NewOutput(os.Stdout)
		useColor = out.ColorProfile() != termenv.Ascii
	})
	return useColor
}

// HasDarkBackground reports the detected terminal background, defaulting to
// dark when detection is unavailable.
func HasDarkBackground() bool {
	return termenv.NewOutput(os.Stdout).HasDarkBackground()
}
