package sitelinesdk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitSendsReportWithBearer(t *testing.T) {
	var got Report
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v0/auth/dev/login":
			json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
		case "/v0/tasks/t1/submit":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(TaskDetail{Task: Task{ID: "t1", Status: "UNDER_REVIEW_FOREMAN"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()
	require.NoError(t, c.DevLogin(ctx, "w1"))
	d, err := c.Submit(ctx, "t1", Report{
		Comment: "done",
		Answers: []Answer{{ChecklistItemID: "i1", Completed: true}},
		Photos:  []Photo{{ChecklistItemID: "i1", Ref: "tasks/t1/a.jpg"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "UNDER_REVIEW_FOREMAN", d.Task.Status)
	assert.Equal(t, "done", got.Comment)
	require.Len(t, got.Photos, 1)
}

func TestUploadPhotoStreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/tasks/t1/evidence", r.URL.Path)
		assert.Equal(t, "tiles.jpg", r.URL.Query().Get("filename"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
		b, _ := io.ReadAll(r.Body)
		assert.Equal(t, "jpeg", string(b))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"ref": "tasks/t1/x-tiles.jpg"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.APIKey = "key"
	ref, err := c.UploadPhoto(context.Background(), "t1", "tiles.jpg", strings.NewReader("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "tasks/t1/x-tiles.jpg", ref)
}

func TestErrorEnvelopeIsDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error":{"code":"invalid_transition","message":"invalid transition: submit is not allowed from LOCKED","details":{"from":"LOCKED"}}}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Reject(context.Background(), "t1", "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "invalid_transition", apiErr.Code)
	assert.Equal(t, "LOCKED", apiErr.Details["from"])
}

func TestEventsPageQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "42", r.URL.Query().Get("before"))
		io.WriteString(w, `{"items":[{"id":41,"type":"task.created"}],"next_cursor":41}`)
	}))
	defer srv.Close()

	page, err := New(srv.URL).EventsPage(context.Background(), 10, 42)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.NextCursor)
	assert.EqualValues(t, 41, *page.NextCursor)
}
