// Package timer implements the per-task countdown: pure transition functions
// over a task's timer tuple, and a local 1 Hz tick loop.
//
// Every deliberate transition (set, start, pause, add) stamps
// timerLastUpdated and is persisted immediately by the caller. Ticks are
// local only: each client decrements its own copy once per second and never
// writes the tick, so a running timer costs zero store traffic. Other clients
// resume counting from the tuple persisted at the last transition, which
// keeps all displayed countdowns consistent within local clock drift.
package timer

import (
	"time"

	"github.com/benresonance-star/tally/internal/types"
)

// SetDuration resets the task's timer to a fresh countdown of the given
// number of seconds, pausing it.
func SetDuration(task *types.Task, seconds int, now time.Time) {
	if seconds < 0 {
		seconds = 0
	}
	task.TimerDuration = seconds
	task.TimerRemaining = seconds
	task.TimerIsRunning = false
	task.TimerLastUpdated = now
}

// Start sets the timer running. A finished timer restarts from its full
// duration. The caller enforces the single-active-timer invariant by pausing
// every other running timer in the same update.
func Start(task *types.Task, now time.Time) {
	if task.TimerRemaining <= 0 {
		task.TimerRemaining = task.TimerDuration
	}
	task.TimerIsRunning = true
	task.TimerLastUpdated = now
}

// Pause halts the countdown without touching remaining.
func Pause(task *types.Task, now time.Time) {
	task.TimerIsRunning = false
	task.TimerLastUpdated = now
}

// Toggle flips between running and paused.
func Toggle(task *types.Task, now time.Time) {
	if task.TimerIsRunning {
		Pause(task, now)
	} else {
		Start(task, now)
	}
}

// AddTime adjusts remaining by delta seconds (clamped at zero) without
// changing the run state.
func AddTime(task *types.Task, delta int, now time.Time) {
	task.TimerRemaining += delta
	if task.TimerRemaining < 0 {
		task.TimerRemaining = 0
	}
	task.TimerLastUpdated = now
}

// Reset returns the timer to a paused, full countdown.
func Reset(task *types.Task, now time.Time) {
	task.TimerRemaining = task.TimerDuration
	task.TimerIsRunning = false
	task.TimerLastUpdated = now
}

// Tick decrements a running timer by one second, clamped at zero, and stops
// it on reaching zero. Does not stamp timerLastUpdated: ticks are local and
// never persisted. Returns true if the timer just finished.
func Tick(task *types.Task) bool {
	if !task.TimerIsRunning {
		return false
	}
	task.TimerRemaining--
	if task.TimerRemaining <= 0 {
		task.TimerRemaining = 0
		task.TimerIsRunning = false
		return true
	}
	return false
}
