package routine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// ErrNotFound indicates the routine document does not exist.
var ErrNotFound = errors.New("routine not found")

// Store loads routine documents. The session reads a routine once at session
// start; it does not subscribe to live updates.
type Store interface {
	GetRoutineByID(ctx context.Context, routineID string) (RawRoutine, error)
}

// HTTPStore fetches routine documents from the sync service.
type HTTPStore struct {
	baseURL    string
	httpClient *http.Client
}

var _ Store = (*HTTPStore)(nil)

// NewHTTPStore creates a routine store targeting the given base URL.
func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPStore) GetRoutineByID(ctx context.Context, routineID string) (RawRoutine, error) {
	endpoint := fmt.Sprintf("%s/api/v1/routines/%s", s.baseURL, url.PathEscape(routineID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return RawRoutine{}, fmt.Errorf("building routine request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return RawRoutine{}, fmt.Errorf("fetching routine %s: %w", routineID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return RawRoutine{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return RawRoutine{}, fmt.Errorf("routine request failed (status %d): %s", resp.StatusCode, body)
	}

	var raw RawRoutine
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return RawRoutine{}, fmt.Errorf("decoding routine %s: %w", routineID, err)
	}
	if raw.RoutineID == "" {
		raw.RoutineID = routineID
	}
	return raw, nil
}

// FileStore loads a routine document from a local JSON file, for offline
// practice and demos. The routineID argument is ignored; the file is the
// document.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) GetRoutineByID(ctx context.Context, routineID string) (RawRoutine, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return RawRoutine{}, ErrNotFound
		}
		return RawRoutine{}, fmt.Errorf("reading routine file %s: %w", s.path, err)
	}

	var raw RawRoutine
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawRoutine{}, fmt.Errorf("parsing routine file %s: %w", s.path, err)
	}
	if raw.RoutineID == "" {
		raw.RoutineID = routineID
	}
	return raw, nil
}
