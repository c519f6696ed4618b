package notes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNoteID(t *testing.T) {
	id1 := NewNoteID()
	id2 := NewNoteID()

	assert.True(t, strings.HasPrefix(id1, "routineNote_"))
	assert.NotEqual(t, id1, id2)
}

func TestClient_List(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/users/u1/routines/r1/notes", r.URL.Path)
		json.NewEncoder(w).Encode([]Note{
			{NoteID: "n2", Text: "work on bar 12", UpdatedAtMs: 200},
			{NoteID: "n1", Text: "slower tempo", UpdatedAtMs: 100},
		})
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	list, err := client.List(context.Background(), "u1", "r1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0].NoteID)
	assert.Equal(t, "work on bar 12", list[0].Text)
}

func TestClient_Add(t *testing.T) {
	var received Note
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	note, err := client.Add(context.Background(), "u1", "r1", "remember the repeat")
	require.NoError(t, err)

	assert.Equal(t, "remember the repeat", note.Text)
	assert.True(t, strings.HasPrefix(note.NoteID, "routineNote_"))
	assert.NotZero(t, note.CreatedAtMs)
	assert.Equal(t, note.CreatedAtMs, note.UpdatedAtMs)
	assert.Equal(t, note.NoteID, received.NoteID)
}

func TestClient_Update(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/users/u1/routines/r1/notes/n1", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	note, err := client.Update(context.Background(), "u1", "r1", "n1", "new text")
	require.NoError(t, err)
	assert.Equal(t, "n1", note.NoteID)
	assert.Equal(t, "new text", note.Text)
	assert.NotZero(t, note.UpdatedAtMs)
}

func TestClient_Delete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/users/u1/routines/r1/notes/n1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	assert.NoError(t, client.Delete(context.Background(), "u1", "r1", "n1"))
}

func TestClient_DeleteMissing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	err := client.Delete(context.Background(), "u1", "r1", "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_ServerErrorSurfaces(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	_, err := client.List(context.Background(), "u1", "r1")
	assert.Error(t, err)
	_, err = client.Add(context.Background(), "u1", "r1", "x")
	assert.Error(t, err)
}
