package persist

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// LocalStore is the authoritative same-device snapshot store: a key-value
// store keyed by SessionKey, holding the JSON-serialized Snapshot.
type LocalStore interface {
	Get(key string) (*Snapshot, error)
	Put(key string, snap Snapshot) error
	Delete(key string) error
}

// SQLiteStore implements LocalStore on an SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

var _ LocalStore = (*SQLiteStore)(nil)

// OpenSQLiteStore opens (or creates) the session database at dir/sessions.db.
func OpenSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "sessions.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS active_sessions (
		key        TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		updated_at_ms INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(key string) (*Snapshot, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM active_sessions WHERE key = ?`, key,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", key, err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("parsing session %s: %w", key, err)
	}
	return &snap, nil
}

func (s *SQLiteStore) Put(key string, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("serializing session %s: %w", key, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO active_sessions (key, payload, updated_at_ms) VALUES (?, ?, ?)`,
		key, string(payload), snap.UpdatedAtMs,
	)
	if err != nil {
		return fmt.Errorf("writing session %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM active_sessions WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting session %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemoryStore is an in-memory LocalStore, used in tests and as a fallback
// when no writable data directory is available.
type MemoryStore struct {
	mu    sync.Mutex
	snaps map[string]Snapshot
}

var _ LocalStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]Snapshot)}
}

func (s *MemoryStore) Get(key string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[key]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (s *MemoryStore) Put(key string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[key] = snap
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, key)
	return nil
}
