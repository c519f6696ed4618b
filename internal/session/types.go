// Package session implements the practice session runtime: position
// navigation over a routine, the exercise countdown, and the manager that
// orchestrates them together with persistence and the UI.
package session

import (
	"fmt"

	"github.com/jamflo/jamflo/internal/routine"
)

// Status is the session lifecycle state.
type Status int

const (
	StatusLoading Status = iota
	StatusActive
	StatusCompleted
	StatusAbandoned
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Metronome holds the metronome settings the session carries alongside the
// countdown. An exercise with a stored tempo seeds BPM on arrival.
type Metronome struct {
	BPM         int
	BeatsPerBar int
}

// DefaultMetronome matches what a session starts with before any exercise
// tempo or restored state overrides it.
var DefaultMetronome = Metronome{BPM: 60, BeatsPerBar: 2}

// ViewState is the complete render-ready snapshot the manager publishes to
// the UI after every state change. All derived values are computed here so
// presentation code never recomputes them.
type ViewState struct {
	Status      Status
	RoutineName string

	BlockIndex    int
	ExerciseIndex int
	BlockName     string
	BlockDesc     string
	Exercise      *routine.Exercise // nil when the routine is empty

	IsRunning   bool
	RemainingMs int64
	// TimerText is the remaining time formatted M:SS, seconds rounded up.
	TimerText string
	// ExerciseProgress is elapsed/duration for the current exercise, 0..1.
	ExerciseProgress float64

	Progress  Progress
	Metronome Metronome
}

// FormatTimer renders a millisecond remainder as M:SS with seconds rounded
// up, so the display only shows 0:00 once the countdown has finished.
func FormatTimer(remainingMs int64) string {
	if remainingMs < 0 {
		remainingMs = 0
	}
	secs := (remainingMs + 999) / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
