package session

import (
	"github.com/jamflo/jamflo/internal/routine"
)

// Position identifies one exercise inside the two-level
// focus-block/exercise sequence.
type Position struct {
	BlockIndex    int
	ExerciseIndex int
}

// Progress summarizes linear progress across the flattened routine.
// CompletedExercises counts positions strictly before the current one.
type Progress struct {
	TotalExercises     int
	CompletedExercises int
	RemainingExercises int
	Percent            int
}

// Navigator is the position state machine over a routine's focus blocks and
// exercises. It is the single source of truth for position-derived values;
// presentation code reads the derived fields and never recomputes them.
//
// Raw indices may be transiently out of range (e.g. from a stale restore);
// derived accessors clamp instead of failing. An empty routine degrades
// every operation to a no-op.
//
// Navigator is not goroutine-safe; the session manager serializes access.
type Navigator struct {
	blocks        []routine.FocusBlock
	flat          []Position
	blockIndex    int
	exerciseIndex int

	// completeFired makes completion one-shot per arrival at the end; it
	// re-arms on SetPosition/Reset, not once per Navigator lifetime.
	completeFired bool
	onComplete    func()
}

// NewNavigator creates a Navigator seeded at position (0,0). onComplete may
// be nil; when set it fires at most once per arrival at the end of the
// routine, from within the GoNext call that detected it.
func NewNavigator(blocks []routine.FocusBlock, onComplete func()) *Navigator {
	var flat []Position
	for bi, b := range blocks {
		for ei := range b.Exercises {
			flat = append(flat, Position{BlockIndex: bi, ExerciseIndex: ei})
		}
	}
	return &Navigator{
		blocks:     blocks,
		flat:       flat,
		onComplete: onComplete,
	}
}

func clampIndex(i, length int) int {
	if length <= 0 || i < 0 {
		return 0
	}
	if i >= length {
		return length - 1
	}
	return i
}

// SafeBlockIndex is the raw block index clamped into the valid range.
func (n *Navigator) SafeBlockIndex() int {
	return clampIndex(n.blockIndex, len(n.blocks))
}

// SafeExerciseIndex is the raw exercise index clamped into the current
// block's range.
func (n *Navigator) SafeExerciseIndex() int {
	b := n.CurrentBlock()
	if b == nil {
		return 0
	}
	return clampIndex(n.exerciseIndex, len(b.Exercises))
}

// RawPosition returns the unclamped indices.
func (n *Navigator) RawPosition() Position {
	return Position{BlockIndex: n.blockIndex, ExerciseIndex: n.exerciseIndex}
}

// CurrentBlock returns the active focus block, or nil for an empty routine.
func (n *Navigator) CurrentBlock() *routine.FocusBlock {
	if len(n.blocks) == 0 {
		return nil
	}
	return &n.blocks[n.SafeBlockIndex()]
}

// CurrentExercise returns the active exercise, or nil when the routine or
// current block is empty.
func (n *Navigator) CurrentExercise() *routine.Exercise {
	b := n.CurrentBlock()
	if b == nil || len(b.Exercises) == 0 {
		return nil
	}
	return &b.Exercises[n.SafeExerciseIndex()]
}

// DurationMs returns the current exercise's duration in milliseconds,
// never less than one minute.
func (n *Navigator) DurationMs() int64 {
	mins := 1
	if ex := n.CurrentExercise(); ex != nil && ex.DurationMins > 1 {
		mins = ex.DurationMins
	}
	return int64(mins) * 60_000
}

// TotalExercises is the number of exercises across the whole routine.
func (n *Navigator) TotalExercises() int {
	return len(n.flat)
}

// FlatIndex is the linear index of the current position across the
// flattened routine.
func (n *Navigator) FlatIndex() int {
	if len(n.flat) == 0 {
		return 0
	}
	bi := n.SafeBlockIndex()
	idx := 0
	for i := 0; i < bi; i++ {
		idx += len(n.blocks[i].Exercises)
	}
	return idx + n.SafeExerciseIndex()
}

// Progress reports linear progress metrics; an empty routine yields zeros.
func (n *Navigator) Progress() Progress {
	total := len(n.flat)
	if total == 0 {
		return Progress{}
	}
	completed := n.FlatIndex()
	return Progress{
		TotalExercises:     total,
		CompletedExercises: completed,
		RemainingExercises: total - completed,
		Percent:            (completed*100 + total/2) / total,
	}
}

// SetPosition sets the raw indices directly and re-arms completion
// detection: completion must fire once per arrival at the end, and a
// reposition begins a new arrival.
func (n *Navigator) SetPosition(blockIndex, exerciseIndex int) {
	n.completeFired = false
	n.blockIndex = blockIndex
	n.exerciseIndex = exerciseIndex
}

// Reset returns to position (0,0) and re-arms the completion guard.
func (n *Navigator) Reset() {
	n.SetPosition(0, 0)
}

// GoNext advances to the next flattened position. At the last exercise it
// fires onComplete (at most once since the last SetPosition/Reset) and
// reports completion without moving.
func (n *Navigator) GoNext() (didComplete bool) {
	if len(n.flat) == 0 {
		return false
	}

	next := n.FlatIndex() + 1
	if next >= len(n.flat) {
		if !n.completeFired {
			n.completeFired = true
			if n.onComplete != nil {
				n.onComplete()
			}
		}
		return true
	}

	pos := n.flat[next]
	n.SetPosition(pos.BlockIndex, pos.ExerciseIndex)
	return false
}

// GoPrev moves to the previous flattened position; returns false at the
// first position.
func (n *Navigator) GoPrev() bool {
	if len(n.flat) == 0 {
		return false
	}

	prev := n.FlatIndex() - 1
	if prev < 0 {
		return false
	}

	pos := n.flat[prev]
	n.SetPosition(pos.BlockIndex, pos.ExerciseIndex)
	return true
}

// SkipExercise is GoNext under a clearer name: a manual skip and a natural
// timer expiry share one advancement path so completion detection is
// uniform regardless of cause.
func (n *Navigator) SkipExercise() (didComplete bool) {
	return n.GoNext()
}

// JumpTo moves to an explicit position after validating both indices
// against the current data; out-of-range requests are rejected with no
// state change.
func (n *Navigator) JumpTo(blockIndex, exerciseIndex int) bool {
	if blockIndex < 0 || blockIndex >= len(n.blocks) {
		return false
	}
	if exerciseIndex < 0 || exerciseIndex >= len(n.blocks[blockIndex].Exercises) {
		return false
	}
	n.SetPosition(blockIndex, exerciseIndex)
	return true
}
