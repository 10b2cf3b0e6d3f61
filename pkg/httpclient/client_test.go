package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStandardClient_DefaultTimeout(t *testing.T) {
	c, ok := NewStandardClient(0).(*http.Client)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, c.Timeout)
}

func TestPostJSON(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	status, err := PostJSON(context.Background(), NewStandardClient(time.Second), server.URL, map[string]string{"runId": "run-1"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "run-1", got["runId"])
}

func TestPostJSON_Errors(t *testing.T) {
	client := NewStandardClient(time.Second)

	_, err := PostJSON(context.Background(), client, "http://example.invalid", make(chan int))
	assert.ErrorContains(t, err, "failed to encode payload")

	_, err = PostJSON(context.Background(), client, "://bad", map[string]string{})
	assert.Error(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()
	_, err = PostJSON(context.Background(), client, server.URL, map[string]string{})
	assert.Error(t, err)
}
