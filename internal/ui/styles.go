// Package ui provides terminal styling for tally CLI output.
// Uses the Nord color theme with adaptive light/dark mode support.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Nord theme palette: https://www.nordtheme.com/docs/colors-and-palettes
var (
	ColorDone = lipgloss.AdaptiveColor{
		Light: "#4c9159", // darkened nord14 for light backgrounds
		Dark:  "#a3be8c", // nord14 green
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#b08900", // darkened nord13
		Dark:  "#ebcb8b", // nord13 yellow
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#a94442",
		Dark:  "#bf616a", // nord11 red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#7b88a1",
		Dark:  "#616e88", // between nord3 and nord9
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#3b6ea5",
		Dark:  "#88c0d0", // nord8 frost
	}
	ColorTimer = lipgloss.AdaptiveColor{
		Light: "#8f5e99",
		Dark:  "#b48ead", // nord15 purple
	}
)

var (
	DoneStyle   = lipgloss.NewStyle().Foreground(ColorDone)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	TimerStyle  = lipgloss.NewStyle().Foreground(ColorTimer)
)

// HeaderStyle for section headers.
var HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

// Checklist glyphs.
const (
	IconDone    = "✓"
	IconPending = "○"
	IconRunning = "▶"
	IconPaused  = "⏸"
	IconWarn    = "⚠"
	IconFail    = "✗"
)

// RenderDone renders text in the completed (green) style.
func RenderDone(s string) string { return DoneStyle.Render(s) }

// RenderWarn renders text in the warning (yellow) style.
func RenderWarn(s string) string { return WarnStyle.Render(s) }

// RenderFail renders text in the failure (red) style.
func RenderFail(s string) string { return FailStyle.Render(s) }

// RenderMuted renders text in the muted (gray) style.
func RenderMuted(s string) string { return MutedStyle.Render(s) }

// RenderAccent renders text in the accent (blue) style.
func RenderAccent(s string) string { return AccentStyle.Render(s) }

// RenderHeader renders a section header, uppercased.
func RenderHeader(s string) string { return HeaderStyle.Render(strings.ToUpper(s)) }

// FormatCountdown renders seconds as m:ss (or h:mm:ss past an hour).
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := seconds % 3600 / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
