package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RemoteStore mirrors snapshots to a per-(user, routine) document on the
// sync service. Remote persistence is an optimization, not a correctness
// requirement; callers treat failures as best-effort.
type RemoteStore interface {
	Fetch(ctx context.Context, userID, routineID string) (*Snapshot, error)
	Merge(ctx context.Context, userID, routineID string, snap Snapshot) error
	Delete(ctx context.Context, userID, routineID string) error
}

// HTTPRemoteStore implements RemoteStore against the sync service REST API.
type HTTPRemoteStore struct {
	baseURL    string
	httpClient *http.Client
}

var _ RemoteStore = (*HTTPRemoteStore)(nil)

// NewHTTPRemoteStore creates a remote store targeting the given base URL.
func NewHTTPRemoteStore(baseURL string) *HTTPRemoteStore {
	return &HTTPRemoteStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPRemoteStore) endpoint(userID, routineID string) string {
	return fmt.Sprintf("%s/api/v1/users/%s/sessions/%s",
		s.baseURL, url.PathEscape(userID), url.PathEscape(routineID))
}

// Fetch returns the stored snapshot, or nil when none exists.
func (s *HTTPRemoteStore) Fetch(ctx context.Context, userID, routineID string) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(userID, routineID), nil)
	if err != nil {
		return nil, fmt.Errorf("building session request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("remote session fetch failed (status %d): %s", resp.StatusCode, body)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding remote session: %w", err)
	}
	return &snap, nil
}

// Merge writes the snapshot with merge semantics: the service folds the
// fields into the existing document rather than replacing it, so partial
// updates never clobber unrelated fields.
func (s *HTTPRemoteStore) Merge(ctx context.Context, userID, routineID string, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("serializing remote session: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.endpoint(userID, routineID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building session merge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("merging remote session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("remote session merge failed (status %d): %s", resp.StatusCode, body)
	}
	return nil
}

func (s *HTTPRemoteStore) Delete(ctx context.Context, userID, routineID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.endpoint(userID, routineID), nil)
	if err != nil {
		return fmt.Errorf("building session delete request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleting remote session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("remote session delete failed (status %d): %s", resp.StatusCode, body)
	}
	return nil
}
