// Package notes is the client for per-routine practice notes kept on the
// sync server. Notes are small free-text entries the player jots down while
// practicing; they live alongside the routine, not the session snapshot.
package notes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the server has no such note.
var ErrNotFound = errors.New("note not found")

// Note is one practice note attached to a routine.
type Note struct {
	NoteID      string `json:"noteId"`
	Text        string `json:"text"`
	CreatedAtMs int64  `json:"createdAtMs"`
	UpdatedAtMs int64  `json:"updatedAtMs"`
}

// Client talks to the notes endpoints of the sync server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a notes client for the given server base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewNoteID builds a collision-resistant note identifier. IDs are minted
// client-side so a note exists locally before the server confirms it.
func NewNoteID() string {
	return fmt.Sprintf("routineNote_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

func (c *Client) endpoint(userID, routineID string) string {
	return fmt.Sprintf("%s/api/v1/users/%s/routines/%s/notes", c.baseURL, userID, routineID)
}

// List fetches all notes for a routine, newest first.
func (c *Client) List(ctx context.Context, userID, routineID string) ([]Note, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(userID, routineID), nil)
	if err != nil {
		return nil, fmt.Errorf("creating notes list request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing notes: unexpected status %d", resp.StatusCode)
	}

	var out []Note
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding notes list: %w", err)
	}
	return out, nil
}

// Add creates a new note and returns it as stored by the server.
func (c *Client) Add(ctx context.Context, userID, routineID, text string) (Note, error) {
	now := time.Now().UnixMilli()
	note := Note{
		NoteID:      NewNoteID(),
		Text:        text,
		CreatedAtMs: now,
		UpdatedAtMs: now,
	}
	if err := c.send(ctx, http.MethodPost, c.endpoint(userID, routineID), note); err != nil {
		return Note{}, fmt.Errorf("adding note: %w", err)
	}
	return note, nil
}

// Update replaces the text of an existing note.
func (c *Client) Update(ctx context.Context, userID, routineID, noteID, text string) (Note, error) {
	note := Note{
		NoteID:      noteID,
		Text:        text,
		UpdatedAtMs: time.Now().UnixMilli(),
	}
	url := c.endpoint(userID, routineID) + "/" + noteID
	if err := c.send(ctx, http.MethodPut, url, note); err != nil {
		return Note{}, fmt.Errorf("updating note %s: %w", noteID, err)
	}
	return note, nil
}

// Delete removes a note. Deleting a note the server no longer has returns
// ErrNotFound.
func (c *Client) Delete(ctx context.Context, userID, routineID, noteID string) error {
	url := c.endpoint(userID, routineID) + "/" + noteID
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("creating note delete request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleting note %s: %w", noteID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("deleting note %s: unexpected status %d", noteID, resp.StatusCode)
	}
}

func (c *Client) send(ctx context.Context, method, url string, note Note) error {
	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("encoding note: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}
