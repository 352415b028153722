package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/benresonance-star/tally/internal/types"
)

// RenderInstance renders an instance's checklist tree for the terminal:
// sections, subsections, tasks with completion glyphs, timers and presence.
func RenderInstance(in *types.Instance, now time.Time) string {
	var b strings.Builder

	b.WriteString(RenderHeader(in.Title))
	if live := in.LivePresence(now); len(live) > 0 {
		names := make([]string, 0, len(live))
		for _, p := range live {
			name := p.Name
			if name == "" {
				name = p.UserID
			}
			names = append(names, name)
		}
		b.WriteString(RenderMuted(fmt.Sprintf("  (%s here)", strings.Join(names, ", "))))
	}
	b.WriteString("\n")

	for _, sec := range in.Sections {
		b.WriteString(RenderAccent(sec.Title))
		b.WriteString("\n")
		for _, sub := range sec.Subsections {
			done, total := subsectionProgress(sub)
			b.WriteString(fmt.Sprintf("  %s %s\n", sub.Title,
				RenderMuted(fmt.Sprintf("[%d/%d]", done, total))))
			if !sub.Expanded {
				continue
			}
			for _, task := range sub.Tasks {
				b.WriteString("    ")
				b.WriteString(renderTaskLine(task))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// RenderTemplate renders a template's structure without runtime state.
func RenderTemplate(tpl *types.Template) string {
	var b strings.Builder
	b.WriteString(RenderHeader(tpl.Title))
	b.WriteString(RenderMuted(fmt.Sprintf("  v%d", tpl.Version)))
	b.WriteString("\n")
	for _, sec := range tpl.Sections {
		b.WriteString(RenderAccent(sec.Title))
		b.WriteString("\n")
		for _, sub := range sec.Subsections {
			b.WriteString(fmt.Sprintf("  %s\n", sub.Title))
			for _, task := range sub.Tasks {
				b.WriteString(fmt.Sprintf("    %s %s\n", RenderMuted("·"), task.Title))
			}
		}
	}
	return b.String()
}

func renderTaskLine(task *types.Task) string {
	icon := IconPending
	title := task.Title
	if task.Completed {
		icon = RenderDone(IconDone)
		title = RenderMuted(title)
	}
	line := fmt.Sprintf("%s %s", icon, title)

	switch {
	case task.TimerIsRunning:
		line += " " + TimerStyle.Render(fmt.Sprintf("%s %s", IconRunning, FormatCountdown(task.TimerRemaining)))
	case task.TimerRemaining > 0 && task.TimerRemaining != task.TimerDuration:
		line += " " + RenderMuted(fmt.Sprintf("%s %s", IconPaused, FormatCountdown(task.TimerRemaining)))
	}
	if task.UserNotes != "" {
		line += " " + RenderMuted("✎")
	}
	return line
}

func subsectionProgress(sub *types.Subsection) (done, total int) {
	for _, task := range sub.Tasks {
		total++
		if task.Completed {
			done++
		}
	}
	return done, total
}
