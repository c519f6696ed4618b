package session

import (
	"log"
	"sync"
	"time"
)

const (
	tickInterval  = 250 * time.Millisecond
	minDurationMs = 1000
)

// CountdownTimer counts an exercise down to zero against a wall-clock
// deadline. The deadline is anchored once when the timer starts running and
// remaining time is recomputed from it on every tick, so display-rate jitter
// never accumulates into drift.
//
// Configure binds the timer to one exercise identity; reconfiguring resets
// the countdown even mid-run, which is what retires stale ticks from the
// previous exercise. onFinish fires exactly once per configured countdown.
type CountdownTimer struct {
	logger   *log.Logger
	onFinish func(exerciseID string)
	onTick   func(remainingMs int64)

	mu          sync.Mutex
	exerciseID  string
	durationMs  int64
	remainingMs int64
	running     bool
	finished    bool
	deadline    time.Time

	stopChan     chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// NewCountdownTimer creates a timer and starts its tick loop. onFinish and
// onTick may be nil; both are invoked from the tick goroutine with no timer
// lock held, so they may call back into the timer. onFinish receives the
// exercise identity the finish was computed for, letting the receiver drop
// a finish that was in flight when the timer was reconfigured.
func NewCountdownTimer(logger *log.Logger, onFinish func(exerciseID string), onTick func(remainingMs int64)) *CountdownTimer {
	if logger == nil {
		panic("NewCountdownTimer: logger is nil")
	}
	t := &CountdownTimer{
		logger:   logger,
		onFinish: onFinish,
		onTick:   onTick,
		stopChan: make(chan struct{}),
	}
	t.wg.Add(1)
	go t.loop()
	return t
}

func (t *CountdownTimer) loop() {
	defer t.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopChan:
			return
		case now := <-ticker.C:
			tick, finish, rem, id := t.handleTick(now)
			if tick && t.onTick != nil {
				t.onTick(rem)
			}
			if finish && t.onFinish != nil {
				t.onFinish(id)
			}
		}
	}
}

// handleTick advances the countdown for one tick. It reports whether a tick
// update and/or the finish transition should be delivered, along with the
// exercise identity the finish belongs to; the caller fires the callbacks
// after the lock is released. The finished guard is set here, before any
// callback runs, so finish is one-shot even if a callback stalls.
func (t *CountdownTimer) handleTick(now time.Time) (tick, finish bool, remainingMs int64, exerciseID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running || t.finished {
		return false, false, t.remainingMs, t.exerciseID
	}

	rem := t.deadline.Sub(now).Milliseconds()
	if rem < 0 {
		rem = 0
	}
	t.remainingMs = rem
	if rem == 0 {
		t.finished = true
		return true, true, 0, t.exerciseID
	}
	return true, false, rem, t.exerciseID
}

// Configure binds the timer to exerciseID and resets the countdown to
// initialRemainingMs, or to the full duration when initialRemainingMs is
// not positive. It applies even while running: the deadline is re-anchored
// from now so the new exercise starts from a clean countdown.
func (t *CountdownTimer) Configure(exerciseID string, durationMs, initialRemainingMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if durationMs < minDurationMs {
		durationMs = minDurationMs
	}
	rem := initialRemainingMs
	if rem <= 0 || rem > durationMs {
		rem = durationMs
	}

	t.exerciseID = exerciseID
	t.durationMs = durationMs
	t.remainingMs = rem
	t.finished = false
	if t.running {
		t.deadline = time.Now().Add(time.Duration(rem) * time.Millisecond)
	}
}

// SetRunning starts or pauses the countdown. Starting anchors the deadline
// at now plus the remaining time; pausing freezes the remaining time, so a
// later start resumes from where it stopped.
func (t *CountdownTimer) SetRunning(running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if running == t.running {
		return
	}
	if running {
		t.deadline = time.Now().Add(time.Duration(t.remainingMs) * time.Millisecond)
		t.running = true
		return
	}
	if !t.finished {
		rem := time.Until(t.deadline).Milliseconds()
		if rem < 0 {
			rem = 0
		}
		t.remainingMs = rem
	}
	t.running = false
}

// IsRunning reports whether the countdown is currently running.
func (t *CountdownTimer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running && !t.finished
}

// ExerciseID returns the identity the timer is currently bound to.
func (t *CountdownTimer) ExerciseID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exerciseID
}

// DurationMs returns the configured full duration.
func (t *CountdownTimer) DurationMs() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.durationMs
}

// RemainingMs returns the remaining time as of the last tick or pause.
func (t *CountdownTimer) RemainingMs() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingMs
}

// Seconds returns the remaining time in whole seconds, rounded up so the
// display only reaches 0 when the countdown actually finishes.
func (t *CountdownTimer) Seconds() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return (t.remainingMs + 999) / 1000
}

// Shutdown stops the tick loop and waits for it to exit. Safe to call more
// than once.
func (t *CountdownTimer) Shutdown() {
	t.shutdownOnce.Do(func() {
		close(t.stopChan)
		t.wg.Wait()
		t.logger.Println("CountdownTimer: shut down")
	})
}
