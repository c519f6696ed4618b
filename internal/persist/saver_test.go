package persist

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// fakeRemote is an in-memory RemoteStore recording calls.
type fakeRemote struct {
	mu      sync.Mutex
	snap    *Snapshot
	merges  int
	deletes int
	fetches int
}

func (r *fakeRemote) Fetch(ctx context.Context, userID, routineID string) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	if r.snap == nil {
		return nil, nil
	}
	snap := *r.snap
	return &snap, nil
}

func (r *fakeRemote) Merge(ctx context.Context, userID, routineID string, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merges++
	r.snap = &snap
	return nil
}

func (r *fakeRemote) Delete(ctx context.Context, userID, routineID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	r.snap = nil
	return nil
}

type saverFixture struct {
	local  *MemoryStore
	remote *fakeRemote
	key    string

	mu       sync.Mutex
	snapshot *Snapshot
	restored []Snapshot
}

func (f *saverFixture) setSnapshot(snap *Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = snap
}

func (f *saverFixture) lastRestored() *Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.restored) == 0 {
		return nil
	}
	snap := f.restored[len(f.restored)-1]
	return &snap
}

func newSaverFixture(t *testing.T, mode Mode, withRemote bool) (*Saver, *saverFixture) {
	t.Helper()
	f := &saverFixture{
		local: NewMemoryStore(),
		key:   SessionKey("u1", "r1"),
	}
	cfg := SaverConfig{
		RoutineID: "r1",
		UserID:    "u1",
		Mode:      mode,
		Local:     f.local,
		GetSnapshot: func() *Snapshot {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.snapshot == nil {
				return nil
			}
			snap := *f.snapshot
			return &snap
		},
		OnRestore: func(snap Snapshot) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.restored = append(f.restored, snap)
		},
		Debounce: 20 * time.Millisecond,
		Logger:   testLogger(),
	}
	if withRemote {
		f.remote = &fakeRemote{}
		cfg.Remote = f.remote
	}
	s := NewSaver(cfg)
	t.Cleanup(s.Close)
	return s, f
}

func TestNewSaver_PanicsWithoutRequiredFields(t *testing.T) {
	assert.Panics(t, func() {
		NewSaver(SaverConfig{GetSnapshot: func() *Snapshot { return nil }})
	})
	assert.Panics(t, func() {
		NewSaver(SaverConfig{Logger: testLogger()})
	})
}

func TestSaver_DisabledWithoutUser(t *testing.T) {
	local := NewMemoryStore()
	s := NewSaver(SaverConfig{
		RoutineID:   "r1",
		Local:       local,
		GetSnapshot: func() *Snapshot { return &Snapshot{ExerciseIndex: 1} },
		Logger:      testLogger(),
	})
	defer s.Close()

	assert.False(t, s.Enabled())

	s.SaveNow(context.Background())
	snap, err := local.Get(SessionKey("", "r1"))
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSaver_SaveNowWritesBothTiers(t *testing.T) {
	s, f := newSaverFixture(t, ModeContinue, true)
	f.setSnapshot(&Snapshot{BlockIndex: 1, ExerciseIndex: 2, RemainingMs: 5000})

	s.SaveNow(context.Background())

	local, err := f.local.Get(f.key)
	require.NoError(t, err)
	require.NotNil(t, local)
	assert.Equal(t, 1, local.BlockIndex)
	assert.Equal(t, 2, local.ExerciseIndex)
	assert.NotZero(t, local.UpdatedAtMs, "saves are stamped")

	assert.Equal(t, 1, f.remote.merges)
	require.NotNil(t, f.remote.snap)
	assert.Equal(t, local.UpdatedAtMs, f.remote.snap.UpdatedAtMs)
}

func TestSaver_NilSnapshotSkipsWrite(t *testing.T) {
	s, f := newSaverFixture(t, ModeContinue, false)
	f.setSnapshot(nil)

	s.SaveNow(context.Background())

	snap, err := f.local.Get(f.key)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSaver_DebounceCoalesces(t *testing.T) {
	s, f := newSaverFixture(t, ModeContinue, true)

	for i := 0; i < 10; i++ {
		f.setSnapshot(&Snapshot{ExerciseIndex: i})
		s.Save()
	}

	require.Eventually(t, func() bool {
		snap, _ := f.local.Get(f.key)
		return snap != nil
	}, time.Second, 5*time.Millisecond)

	snap, err := f.local.Get(f.key)
	require.NoError(t, err)
	assert.Equal(t, 9, snap.ExerciseIndex, "only the final state is written")
	f.remote.mu.Lock()
	assert.Equal(t, 1, f.remote.merges)
	f.remote.mu.Unlock()
}

func TestSaver_SaveNowSupersedesPendingDebounce(t *testing.T) {
	s, f := newSaverFixture(t, ModeContinue, false)

	f.setSnapshot(&Snapshot{ExerciseIndex: 1})
	s.Save()
	f.setSnapshot(&Snapshot{ExerciseIndex: 2})
	s.SaveNow(context.Background())

	snap, err := f.local.Get(f.key)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 2, snap.ExerciseIndex)

	// The canceled debounce does not fire afterwards with stale state.
	time.Sleep(50 * time.Millisecond)
	snap, err = f.local.Get(f.key)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.ExerciseIndex)
}

func TestSaver_CompletedSnapshotClearsInsteadOfSaving(t *testing.T) {
	s, f := newSaverFixture(t, ModeContinue, true)

	f.setSnapshot(&Snapshot{ExerciseIndex: 1})
	s.SaveNow(context.Background())
	require.NotNil(t, f.remote.snap)

	f.setSnapshot(&Snapshot{ExerciseIndex: 2, IsCompleted: true})
	s.SaveNow(context.Background())

	snap, err := f.local.Get(f.key)
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Nil(t, f.remote.snap)
	assert.Equal(t, 1, f.remote.deletes)
}

func TestSaver_StartFreshClears(t *testing.T) {
	s, f := newSaverFixture(t, ModeFresh, true)
	require.NoError(t, f.local.Put(f.key, Snapshot{ExerciseIndex: 3, UpdatedAtMs: 100}))
	f.remote.snap = &Snapshot{ExerciseIndex: 3, UpdatedAtMs: 100}

	s.Start(context.Background())

	snap, err := f.local.Get(f.key)
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Nil(t, f.remote.snap)
	assert.Nil(t, f.lastRestored())
}

func TestSaver_StartContinueRestoresLocal(t *testing.T) {
	s, f := newSaverFixture(t, ModeContinue, false)
	require.NoError(t, f.local.Put(f.key, Snapshot{ExerciseIndex: 3, UpdatedAtMs: 100}))

	s.Start(context.Background())

	restored := f.lastRestored()
	require.NotNil(t, restored)
	assert.Equal(t, 3, restored.ExerciseIndex)
}

func TestSaver_StartDispatchesOnce(t *testing.T) {
	s, f := newSaverFixture(t, ModeContinue, false)
	require.NoError(t, f.local.Put(f.key, Snapshot{ExerciseIndex: 3, UpdatedAtMs: 100}))

	s.Start(context.Background())
	s.Start(context.Background())

	f.mu.Lock()
	assert.Equal(t, 1, len(f.restored))
	f.mu.Unlock()
}

func TestSaver_RestorePrecedence(t *testing.T) {
	cases := []struct {
		name       string
		localTS    int64
		remoteTS   int64
		wantWinner string
	}{
		{"remote newer", 100, 200, "remote"},
		{"local newer", 200, 100, "local"},
		{"tie goes to remote", 100, 100, "remote"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, f := newSaverFixture(t, ModeContinue, true)
			require.NoError(t, f.local.Put(f.key, Snapshot{ExerciseIndex: 1, UpdatedAtMs: tc.localTS}))
			f.remote.snap = &Snapshot{ExerciseIndex: 2, UpdatedAtMs: tc.remoteTS}

			s.Start(context.Background())

			restored := f.lastRestored()
			require.NotNil(t, restored)
			if tc.wantWinner == "remote" {
				assert.Equal(t, 2, restored.ExerciseIndex)
			} else {
				assert.Equal(t, 1, restored.ExerciseIndex)
			}
		})
	}
}

func TestSaver_RestoreWithOnlyRemote(t *testing.T) {
	s, f := newSaverFixture(t, ModeContinue, true)
	f.remote.snap = &Snapshot{ExerciseIndex: 4, UpdatedAtMs: 100}

	s.Start(context.Background())

	restored := f.lastRestored()
	require.NotNil(t, restored)
	assert.Equal(t, 4, restored.ExerciseIndex)
}

func TestSaver_RestoreNothingSaved(t *testing.T) {
	s, f := newSaverFixture(t, ModeContinue, true)

	s.Start(context.Background())

	assert.Nil(t, f.lastRestored())
}

func TestSaver_CompletedSnapshotNeverRestores(t *testing.T) {
	s, f := newSaverFixture(t, ModeContinue, true)
	require.NoError(t, f.local.Put(f.key, Snapshot{ExerciseIndex: 3, IsCompleted: true, UpdatedAtMs: 100}))

	s.Start(context.Background())

	assert.Nil(t, f.lastRestored())
	// The stale completed snapshot is also cleaned up.
	snap, err := f.local.Get(f.key)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSaver_CloseCancelsPendingSave(t *testing.T) {
	s, f := newSaverFixture(t, ModeContinue, false)

	f.setSnapshot(&Snapshot{ExerciseIndex: 1})
	s.Save()
	s.Close()

	time.Sleep(50 * time.Millisecond)
	snap, err := f.local.Get(f.key)
	require.NoError(t, err)
	assert.Nil(t, snap)
}
