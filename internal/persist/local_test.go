package persist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_PutGetDelete(t *testing.T) {
	store, err := OpenSQLiteStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	key := SessionKey("u1", "r1")

	snap, err := store.Get(key)
	require.NoError(t, err)
	assert.Nil(t, snap)

	want := Snapshot{
		BlockIndex:    1,
		ExerciseIndex: 2,
		RemainingMs:   42_500,
		IsRunning:     true,
		BPM:           96,
		BeatsPerBar:   3,
		UpdatedAtMs:   1700000000000,
	}
	require.NoError(t, store.Put(key, want))

	got, err := store.Get(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	require.NoError(t, store.Delete(key))
	got, err = store.Get(key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_PutReplaces(t *testing.T) {
	store, err := OpenSQLiteStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	key := SessionKey("u1", "r1")
	require.NoError(t, store.Put(key, Snapshot{ExerciseIndex: 1, UpdatedAtMs: 100}))
	require.NoError(t, store.Put(key, Snapshot{ExerciseIndex: 2, UpdatedAtMs: 200}))

	got, err := store.Get(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.ExerciseIndex)
	assert.Equal(t, int64(200), got.UpdatedAtMs)
}

func TestSQLiteStore_KeysAreIndependent(t *testing.T) {
	store, err := OpenSQLiteStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(SessionKey("u1", "r1"), Snapshot{ExerciseIndex: 1}))
	require.NoError(t, store.Put(SessionKey("u1", "r2"), Snapshot{ExerciseIndex: 2}))
	require.NoError(t, store.Put(SessionKey("u2", "r1"), Snapshot{ExerciseIndex: 3}))

	require.NoError(t, store.Delete(SessionKey("u1", "r2")))

	got, err := store.Get(SessionKey("u1", "r1"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.ExerciseIndex)

	got, err = store.Get(SessionKey("u2", "r1"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.ExerciseIndex)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	key := SessionKey("u1", "r1")

	store, err := OpenSQLiteStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(key, Snapshot{ExerciseIndex: 4, UpdatedAtMs: 100}))
	require.NoError(t, store.Close())

	store, err = OpenSQLiteStore(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 4, got.ExerciseIndex)
}

func TestOpenSQLiteStore_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := OpenSQLiteStore(dir)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(SessionKey("u1", "r1"), Snapshot{ExerciseIndex: 1}))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	key := SessionKey("u1", "r1")
	require.NoError(t, store.Put(key, Snapshot{ExerciseIndex: 1}))

	got, err := store.Get(key)
	require.NoError(t, err)
	require.NotNil(t, got)
	got.ExerciseIndex = 99

	again, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, 1, again.ExerciseIndex)
}
