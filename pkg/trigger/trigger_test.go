package trigger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsync/flowsync-api/pkg/httpclient"
)

func TestNotify_PostsEvent(t *testing.T) {
	var got SyncCompleted
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	event := SyncCompleted{RunID: "run-1", IntegrationID: "int-1", Status: "succeeded"}
	err := Notify(context.Background(), srv.URL, event, httpclient.NewStandardClient(time.Second))

	require.NoError(t, err)
	assert.Equal(t, event, got)
}

func TestNotify_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := Notify(context.Background(), srv.URL, SyncCompleted{RunID: "run-1"}, httpclient.NewStandardClient(time.Second))

	assert.ErrorContains(t, err, "502")
}

func TestNotifyAsync_Delivers(t *testing.T) {
	done := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event SyncCompleted
		_ = json.NewDecoder(r.Body).Decode(&event)
		done <- event.RunID
	}))
	defer srv.Close()

	NotifyAsync(srv.URL, SyncCompleted{RunID: "run-2"}, httpclient.NewStandardClient(time.Second))

	select {
	case id := <-done:
		assert.Equal(t, "run-2", id)
	case <-time.After(2 * time.Second):
		t.Fatal("trigger was not called")
	}
}

func TestNotifyAsync_NoURL(t *testing.T) {
	assert.NotPanics(t, func() {
		NotifyAsync("", SyncCompleted{RunID: "run-3"}, nil)
	})
}
