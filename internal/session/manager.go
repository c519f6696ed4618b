package session

import (
	"context"
	"log"
	"sync"

	"github.com/jamflo/jamflo/internal/events"
	"github.com/jamflo/jamflo/internal/persist"
	"github.com/jamflo/jamflo/internal/routine"
)

// Config wires a SessionManager to its routine and persistence tiers.
type Config struct {
	Routine routine.Routine
	UserID  string
	Mode    persist.Mode

	Local  persist.LocalStore  // nil disables persistence
	Remote persist.RemoteStore // nil disables the remote tier

	Logger *log.Logger
}

// SessionManager orchestrates one practice session: it owns the navigator,
// the countdown timer, and the saver, and it is the only component that
// mutates session state. Every externally visible change is published as a
// fresh ViewState; the UI renders what it receives and calls back through
// the action methods.
//
// All state is guarded by mu. Callbacks into the saver and the state event
// are made after mu is released so subscribers are free to call back in.
type SessionManager struct {
	logger *log.Logger
	saver  *persist.Saver
	timer  *CountdownTimer

	mu        sync.Mutex
	routine   routine.Routine
	nav       *Navigator
	status    Status
	metronome Metronome
	// lastSecs gates tick publishing to whole-second changes.
	lastSecs int64

	stateEvent   *events.Event[ViewState]
	shutdownOnce sync.Once
}

// NewSessionManager creates a manager for an already-normalized routine.
// Call Start to run the restore-or-fresh dispatch before handing the
// manager to the UI.
func NewSessionManager(cfg Config) *SessionManager {
	if cfg.Logger == nil {
		panic("SessionManager: logger cannot be nil")
	}

	m := &SessionManager{
		logger:     cfg.Logger,
		routine:    cfg.Routine,
		status:     StatusLoading,
		metronome:  DefaultMetronome,
		lastSecs:   -1,
		stateEvent: events.New[ViewState](true),
	}
	m.nav = NewNavigator(cfg.Routine.FocusBlocks, m.handleRoutineComplete)
	m.timer = NewCountdownTimer(cfg.Logger, m.handleTimerFinished, m.handleTimerTick)
	m.saver = persist.NewSaver(persist.SaverConfig{
		RoutineID:   cfg.Routine.ID,
		UserID:      cfg.UserID,
		Mode:        cfg.Mode,
		Local:       cfg.Local,
		Remote:      cfg.Remote,
		GetSnapshot: m.snapshot,
		OnRestore:   m.applyRestored,
		Logger:      cfg.Logger,
	})
	return m
}

// StateEvent is the publisher the UI subscribes to. It replays the latest
// state to new subscribers.
func (m *SessionManager) StateEvent() *events.Event[ViewState] {
	return m.stateEvent
}

// Start runs the saver's mode dispatch (restoring saved progress in
// continue mode), seeds the timer for the current exercise, and activates
// the session.
func (m *SessionManager) Start(ctx context.Context) {
	m.mu.Lock()
	m.syncExerciseLocked(0)
	m.mu.Unlock()

	// May call applyRestored, which re-seeds position and timer.
	m.saver.Start(ctx)

	m.mu.Lock()
	if m.status == StatusLoading {
		m.status = StatusActive
	}
	state := m.stateLocked()
	m.mu.Unlock()

	m.logger.Printf("SessionManager: session started, routine=%q exercises=%d",
		m.routine.Name, m.routine.TotalExercises())
	m.stateEvent.Publish(state)
}

// State returns the current render-ready snapshot.
func (m *SessionManager) State() ViewState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// ToggleRunning starts or pauses the countdown.
func (m *SessionManager) ToggleRunning() {
	m.mu.Lock()
	if m.terminalLocked() || m.nav.CurrentExercise() == nil {
		m.mu.Unlock()
		return
	}
	m.timer.SetRunning(!m.timer.IsRunning())
	state := m.stateLocked()
	m.mu.Unlock()

	m.stateEvent.Publish(state)
	m.saver.Save()
}

// SkipExercise advances to the next exercise immediately, pausing the
// countdown. Skipping the last exercise completes the session, exactly like
// a natural timer expiry would.
func (m *SessionManager) SkipExercise() {
	m.advance("skip", "")
}

// PrevExercise steps back one exercise. It is ignored while the countdown
// is running and at the first exercise.
func (m *SessionManager) PrevExercise() {
	m.mu.Lock()
	if m.terminalLocked() || m.timer.IsRunning() || !m.nav.GoPrev() {
		m.mu.Unlock()
		return
	}
	m.syncExerciseLocked(0)
	state := m.stateLocked()
	m.mu.Unlock()

	m.stateEvent.Publish(state)
	m.saver.Save()
}

// JumpTo moves directly to the given position, pausing the countdown.
// Out-of-range positions are rejected.
func (m *SessionManager) JumpTo(blockIndex, exerciseIndex int) bool {
	m.mu.Lock()
	if m.terminalLocked() {
		m.mu.Unlock()
		return false
	}
	m.timer.SetRunning(false)
	if !m.nav.JumpTo(blockIndex, exerciseIndex) {
		state := m.stateLocked()
		m.mu.Unlock()
		m.stateEvent.Publish(state)
		return false
	}
	m.syncExerciseLocked(0)
	state := m.stateLocked()
	m.mu.Unlock()

	m.stateEvent.Publish(state)
	m.saver.Save()
	return true
}

// SetMetronome updates the metronome settings. Non-positive values are
// ignored per field.
func (m *SessionManager) SetMetronome(bpm, beatsPerBar int) {
	m.mu.Lock()
	if bpm > 0 {
		m.metronome.BPM = bpm
	}
	if beatsPerBar > 0 {
		m.metronome.BeatsPerBar = beatsPerBar
	}
	state := m.stateLocked()
	m.mu.Unlock()

	m.stateEvent.Publish(state)
	m.saver.Save()
}

// SaveNow flushes the current state immediately, bypassing the debounce.
// Intended for backgrounding and other moments when waiting is not safe.
func (m *SessionManager) SaveNow(ctx context.Context) {
	m.saver.SaveNow(ctx)
}

// Exit ends the session. A completed session clears its saved state; an
// unfinished one is paused and flushed so it can be resumed later.
func (m *SessionManager) Exit(ctx context.Context) {
	m.mu.Lock()
	m.timer.SetRunning(false)
	completed := m.status == StatusCompleted
	if !completed && m.status != StatusLoading {
		m.status = StatusAbandoned
	}
	state := m.stateLocked()
	m.mu.Unlock()

	if completed {
		m.saver.ClearSaved(ctx)
	} else {
		m.saver.SaveNow(ctx)
	}
	m.logger.Printf("SessionManager: session exited, status=%s", state.Status)
	m.stateEvent.Publish(state)
}

// Shutdown stops the timer loop and the saver. Safe to call more than once.
func (m *SessionManager) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.timer.Shutdown()
		m.saver.Close()
		m.logger.Println("SessionManager: shut down")
	})
}

// advance is the single advancement path shared by manual skips and timer
// expiry, so end-of-routine detection behaves identically for both.
// fromExerciseID, when non-empty, restricts the advance to the exercise the
// timer finish was computed for: a skip landing between the finish
// computation and its delivery reconfigures the timer, and the stale finish
// must not advance a second time.
func (m *SessionManager) advance(cause, fromExerciseID string) {
	m.mu.Lock()
	if m.terminalLocked() {
		m.mu.Unlock()
		return
	}
	if fromExerciseID != "" && fromExerciseID != m.timer.ExerciseID() {
		m.mu.Unlock()
		m.logger.Printf("SessionManager: dropped stale finish for exercise %q", fromExerciseID)
		return
	}
	m.timer.SetRunning(false)
	completed := m.nav.GoNext()
	if !completed {
		m.syncExerciseLocked(0)
	}
	state := m.stateLocked()
	m.mu.Unlock()

	if completed {
		m.logger.Printf("SessionManager: routine complete (%s)", cause)
		// The completed marker clears saved state on both tiers; publish
		// afterwards so the UI sees the terminal state with persistence
		// already settled.
		m.saver.MarkCompleted(context.Background())
		m.stateEvent.Publish(state)
		return
	}

	m.logger.Printf("SessionManager: advanced (%s) to block=%d exercise=%d",
		cause, state.BlockIndex, state.ExerciseIndex)
	m.stateEvent.Publish(state)
	m.saver.Save()
}

// handleRoutineComplete runs inside Navigator.GoNext with mu held.
func (m *SessionManager) handleRoutineComplete() {
	m.status = StatusCompleted
}

func (m *SessionManager) handleTimerFinished(exerciseID string) {
	m.advance("timer finished", exerciseID)
}

// handleTimerTick publishes and autosaves only when the displayed seconds
// value changes; sub-second ticks would otherwise reset the autosave
// debounce faster than it can fire.
func (m *SessionManager) handleTimerTick(remainingMs int64) {
	secs := (remainingMs + 999) / 1000

	m.mu.Lock()
	if secs == m.lastSecs {
		m.mu.Unlock()
		return
	}
	m.lastSecs = secs
	state := m.stateLocked()
	m.mu.Unlock()

	m.stateEvent.Publish(state)
	m.saver.Save()
}

// syncExerciseLocked points the timer at the current exercise, counting
// from initialRemainingMs when positive (restore) or the full duration
// otherwise. An exercise that carries a tempo seeds the metronome BPM.
func (m *SessionManager) syncExerciseLocked(initialRemainingMs int64) {
	ex := m.nav.CurrentExercise()
	id := ""
	if ex != nil {
		id = ex.ID
		if ex.TempoBPM > 0 {
			m.metronome.BPM = ex.TempoBPM
		}
	}
	m.timer.Configure(id, m.nav.DurationMs(), initialRemainingMs)
	m.lastSecs = -1
}

func (m *SessionManager) terminalLocked() bool {
	return m.status == StatusCompleted || m.status == StatusAbandoned
}

// snapshot implements the saver's GetSnapshot hook. It is called from the
// saver's own goroutines.
func (m *SessionManager) snapshot() *persist.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &persist.Snapshot{
		BlockIndex:    m.nav.SafeBlockIndex(),
		ExerciseIndex: m.nav.SafeExerciseIndex(),
		RemainingMs:   m.timer.RemainingMs(),
		IsRunning:     m.timer.IsRunning(),
		BPM:           m.metronome.BPM,
		BeatsPerBar:   m.metronome.BeatsPerBar,
		IsCompleted:   m.status == StatusCompleted,
	}
}

// applyRestored applies a restored snapshot: position first, then the timer
// seeded from the saved remainder, then the saved metronome and running
// flag, which override whatever the exercise seeded.
func (m *SessionManager) applyRestored(snap persist.Snapshot) {
	m.mu.Lock()
	m.nav.SetPosition(snap.BlockIndex, snap.ExerciseIndex)
	m.syncExerciseLocked(snap.RemainingMs)
	if snap.BPM > 0 {
		m.metronome.BPM = snap.BPM
	}
	if snap.BeatsPerBar > 0 {
		m.metronome.BeatsPerBar = snap.BeatsPerBar
	}
	m.timer.SetRunning(snap.IsRunning)
	state := m.stateLocked()
	m.mu.Unlock()

	m.logger.Printf("SessionManager: restored saved session at block=%d exercise=%d remaining=%dms",
		snap.BlockIndex, snap.ExerciseIndex, snap.RemainingMs)
	m.stateEvent.Publish(state)
}

func (m *SessionManager) stateLocked() ViewState {
	rem := m.timer.RemainingMs()
	dur := m.timer.DurationMs()
	var exProg float64
	if dur > 0 {
		exProg = float64(dur-rem) / float64(dur)
		if exProg < 0 {
			exProg = 0
		} else if exProg > 1 {
			exProg = 1
		}
	}

	state := ViewState{
		Status:           m.status,
		RoutineName:      m.routine.Name,
		BlockIndex:       m.nav.SafeBlockIndex(),
		ExerciseIndex:    m.nav.SafeExerciseIndex(),
		IsRunning:        m.timer.IsRunning(),
		RemainingMs:      rem,
		TimerText:        FormatTimer(rem),
		ExerciseProgress: exProg,
		Progress:         m.nav.Progress(),
		Metronome:        m.metronome,
	}
	if b := m.nav.CurrentBlock(); b != nil {
		state.BlockName = b.Name
		state.BlockDesc = b.Description
	}
	if ex := m.nav.CurrentExercise(); ex != nil {
		c := *ex
		state.Exercise = &c
	}
	return state
}
