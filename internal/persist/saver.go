package persist

import (
	"context"
	"log"
	"sync"
	"time"
)

// Mode selects the restore behavior for a new session.
type Mode int

const (
	// ModeContinue attempts to restore previously saved state.
	ModeContinue Mode = iota
	// ModeFresh wipes any saved state for this (user, routine) and does not
	// restore; the session starts from the beginning.
	ModeFresh
)

// DefaultDebounce is the autosave coalescing window.
const DefaultDebounce = 400 * time.Millisecond

// SaverConfig wires a Saver to a session.
//
// The Saver never mutates session state directly: it only ever calls
// GetSnapshot to read and OnRestore to hand a restored snapshot back,
// preserving single-writer-per-field discipline.
type SaverConfig struct {
	RoutineID string
	UserID    string
	Mode      Mode

	Local  LocalStore
	Remote RemoteStore // nil disables the remote tier

	// GetSnapshot returns the current session snapshot, or nil when there is
	// nothing to save.
	GetSnapshot func() *Snapshot
	// OnRestore is called with the chosen snapshot when restore succeeds.
	OnRestore func(Snapshot)
	// OnError is optionally notified of persistence failures (which are
	// otherwise logged and swallowed).
	OnError func(error)

	Debounce time.Duration
	Logger   *log.Logger
}

// Saver performs debounced, dual-tier snapshot persistence for one session.
// The local store is authoritative for same-device resume; the remote tier
// is best-effort. With no user ID every operation is a no-op: practicing
// unauthenticated simply runs unpersisted.
type Saver struct {
	cfg      SaverConfig
	key      string
	disabled bool

	mu         sync.Mutex
	pending    *time.Timer
	dispatched bool
	closed     bool

	// nowMs is swappable in tests.
	nowMs func() int64
}

// NewSaver creates a Saver. Logger and GetSnapshot must be set.
func NewSaver(cfg SaverConfig) *Saver {
	if cfg.Logger == nil {
		panic("Saver: logger cannot be nil")
	}
	if cfg.GetSnapshot == nil {
		panic("Saver: GetSnapshot cannot be nil")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	disabled := cfg.UserID == "" || cfg.RoutineID == "" || cfg.Local == nil
	if disabled {
		cfg.Logger.Printf("Saver: persistence disabled (missing user, routine, or local store)")
	}

	return &Saver{
		cfg:      cfg,
		key:      SessionKey(cfg.UserID, cfg.RoutineID),
		disabled: disabled,
		nowMs:    func() int64 { return time.Now().UnixMilli() },
	}
}

// Start runs the mode dispatch: fresh wipes saved state, continue attempts a
// restore. It runs at most once per Saver lifetime; re-applying a stale
// snapshot over live progress would corrupt the session.
func (s *Saver) Start(ctx context.Context) {
	s.mu.Lock()
	if s.dispatched || s.disabled {
		s.mu.Unlock()
		return
	}
	s.dispatched = true
	s.mu.Unlock()

	if s.cfg.Mode == ModeFresh {
		s.cfg.Logger.Printf("Saver: fresh start, clearing saved state for %s", s.key)
		s.ClearSaved(ctx)
		return
	}
	s.Restore(ctx)
}

// Save schedules a debounced write: rapid calls coalesce into a single write
// shortly after the last one.
func (s *Saver) Save() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled || s.closed {
		return
	}
	if s.pending != nil {
		s.pending.Stop()
	}
	s.pending = time.AfterFunc(s.cfg.Debounce, func() {
		s.SaveNow(context.Background())
	})
}

// SaveNow writes immediately, superseding any pending debounced save so a
// stale debounce can never overwrite this write afterwards. Used when the
// app backgrounds or the user leaves the session.
func (s *Saver) SaveNow(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveNowLocked(ctx)
}

func (s *Saver) saveNowLocked(ctx context.Context) {
	if s.disabled || s.closed {
		return
	}
	s.cancelPendingLocked()

	snap := s.cfg.GetSnapshot()
	if snap == nil {
		return
	}

	// A completed session must never reappear as resumable.
	if snap.IsCompleted {
		s.clearSavedLocked(ctx)
		return
	}

	if snap.UpdatedAtMs == 0 {
		snap.UpdatedAtMs = s.nowMs()
	}

	if err := s.cfg.Local.Put(s.key, *snap); err != nil {
		s.reportError("Saver: local save failed", err)
	}
	if s.cfg.Remote != nil {
		if err := s.cfg.Remote.Merge(ctx, s.cfg.UserID, s.cfg.RoutineID, *snap); err != nil {
			// Remote is best-effort; the local copy is authoritative.
			s.reportError("Saver: remote save failed", err)
		}
	}
}

// ClearSaved deletes both the local and remote copies. Used on completion
// and on explicit fresh start.
func (s *Saver) ClearSaved(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPendingLocked()
	s.clearSavedLocked(ctx)
}

func (s *Saver) clearSavedLocked(ctx context.Context) {
	if s.disabled {
		return
	}
	if err := s.cfg.Local.Delete(s.key); err != nil {
		s.reportError("Saver: local clear failed", err)
	}
	if s.cfg.Remote != nil {
		if err := s.cfg.Remote.Delete(ctx, s.cfg.UserID, s.cfg.RoutineID); err != nil {
			s.reportError("Saver: remote clear failed", err)
		}
	}
}

// MarkCompleted clears saved state; a distinct name for the call site where
// completion, not abandonment, is the reason.
func (s *Saver) MarkCompleted(ctx context.Context) {
	s.ClearSaved(ctx)
}

// Restore reads both tiers and hands the most recently updated snapshot to
// OnRestore. A completed snapshot is cleared instead of restored. Failures
// on either tier degrade to whatever the other tier produced.
func (s *Saver) Restore(ctx context.Context) {
	s.mu.Lock()

	if s.disabled {
		s.mu.Unlock()
		return
	}

	local, err := s.cfg.Local.Get(s.key)
	if err != nil {
		s.reportError("Saver: local restore read failed", err)
	}

	var remote *Snapshot
	if s.cfg.Remote != nil {
		remote, err = s.cfg.Remote.Fetch(ctx, s.cfg.UserID, s.cfg.RoutineID)
		if err != nil {
			s.reportError("Saver: remote restore read failed", err)
		}
	}

	chosen := chooseNewest(local, remote)
	if chosen == nil {
		s.mu.Unlock()
		return
	}

	if chosen.IsCompleted {
		s.cfg.Logger.Printf("Saver: ignoring completed snapshot for %s, clearing", s.key)
		s.clearSavedLocked(ctx)
		s.mu.Unlock()
		return
	}
	// Hand off outside the lock: the restore handler is free to trigger a
	// save of the freshly applied state.
	s.mu.Unlock()

	if s.cfg.OnRestore != nil {
		s.cfg.OnRestore(*chosen)
	}
}

// chooseNewest picks the snapshot with the greater client timestamp. The
// remote copy wins ties: if both tiers saw the same write, the mirrored
// document is at least as fresh.
func chooseNewest(local, remote *Snapshot) *Snapshot {
	if remote == nil {
		return local
	}
	if local == nil {
		return remote
	}
	if remote.UpdatedAtMs >= local.UpdatedAtMs {
		return remote
	}
	return local
}

// Close cancels any pending debounced save. Callers should SaveNow first
// when the exit contract requires a final write.
func (s *Saver) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancelPendingLocked()
}

func (s *Saver) cancelPendingLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

func (s *Saver) reportError(msg string, err error) {
	s.cfg.Logger.Printf("%s: %v", msg, err)
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}

// Enabled reports whether this Saver persists at all.
func (s *Saver) Enabled() bool {
	return !s.disabled
}
