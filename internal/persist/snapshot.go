// Package persist implements dual-tier (local-first, remote-best-effort)
// persistence of active practice session state.
package persist

import "fmt"

// Snapshot is the persisted unit for an active session. The same payload is
// written to the local store and mirrored to the remote document, so the
// JSON field names match the remote schema.
//
// UpdatedAtMs is a client-assigned millisecond timestamp. It must be present
// on every snapshot: restore-time conflict resolution compares it across
// tiers, and server-generated timestamps are not comparable to a local epoch
// value.
type Snapshot struct {
	BlockIndex    int   `json:"blockIndex"`
	ExerciseIndex int   `json:"exerciseIndex"`
	RemainingMs   int64 `json:"remainingMs"`
	IsRunning     bool  `json:"isRunning"`
	BPM           int   `json:"bpm"`
	BeatsPerBar   int   `json:"beatsPerBar"`
	IsCompleted   bool  `json:"isCompleted"`
	UpdatedAtMs   int64 `json:"updatedAtMs"`
}

// SessionKey is the local-store key for a (user, routine) pair.
func SessionKey(userID, routineID string) string {
	return fmt.Sprintf("activeSession:%s:%s", userID, routineID)
}
