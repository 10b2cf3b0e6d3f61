package webflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flowsync/flowsync-api/internal/models"
	apperrors "github.com/flowsync/flowsync-api/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("wf-token", Options{BaseURL: server.URL, RequestsPerMinute: 6000})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient("  ", Options{})
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestGetCollection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/col-1", r.URL.Path)
		assert.Equal(t, "Bearer wf-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{
			"id": "col-1",
			"displayName": "Posts",
			"slug": "posts",
			"fields": [
				{"id": "f1", "displayName": "Name", "slug": "name", "type": "PlainText", "isRequired": true},
				{"id": "f2", "displayName": "Tags", "slug": "tags", "type": "Option",
				 "validations": {"options": [{"id": "o1", "name": "x"}]}},
				{"id": "f3", "displayName": "Author", "slug": "author", "type": "Reference",
				 "validations": {"collectionId": "col-2"}}
			]
		}`))
	})

	collection, err := client.GetCollection(context.Background(), "col-1")
	require.NoError(t, err)
	assert.Equal(t, "Posts", collection.DisplayName)
	require.Len(t, collection.Fields, 3)
	assert.Equal(t, models.FieldTypeOption, collection.Fields[1].Type)
	assert.Equal(t, "x", collection.Fields[1].Options()[0].Name)
	assert.Equal(t, "col-2", collection.Fields[2].TargetCollectionID())
}

func TestListItems_Paginates(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		offset := r.URL.Query().Get("offset")
		assert.Equal(t, "100", r.URL.Query().Get("limit"))

		items := []map[string]any{}
		start := 0
		count := 100
		if offset == "100" {
			start, count = 100, 20
		}
		for i := 0; i < count; i++ {
			items = append(items, map[string]any{
				"id":        "item-" + string(rune('a'+(start+i)%26)),
				"isDraft":   false,
				"fieldData": map[string]any{"name": "n"},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":      items,
			"pagination": map[string]any{"limit": 100, "offset": start, "total": 120},
		})
	})

	items, err := client.ListItems(context.Background(), "col-1")
	require.NoError(t, err)
	assert.Len(t, items, 120)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestUpdateItem_SendsFieldData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/collections/col-1/items/item-1", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"notion-page-id": "page-1"}, body["fieldData"])
		assert.NotContains(t, body, "isDraft")
		_, _ = w.Write([]byte(`{"id":"item-1","fieldData":{"notion-page-id":"page-1"}}`))
	})

	item, err := client.UpdateItem(context.Background(), "col-1", "item-1", map[string]any{"notion-page-id": "page-1"})
	require.NoError(t, err)
	assert.Equal(t, "page-1", item.FieldData["notion-page-id"])
}

func TestCreateField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/col-1/fields", r.URL.Path)
		var spec models.FieldSpec
		require.NoError(t, json.NewDecoder(r.Body).Decode(&spec))
		assert.Equal(t, "Notion Page ID", spec.DisplayName)
		_, _ = w.Write([]byte(`{"id":"f9","displayName":"Notion Page ID","slug":"notion-page-id-2","type":"PlainText"}`))
	})

	field, err := client.CreateField(context.Background(), "col-1", models.FieldSpec{
		Type: models.FieldTypePlainText, DisplayName: "Notion Page ID",
	})
	require.NoError(t, err)
	assert.Equal(t, "notion-page-id-2", field.Slug)
}

func TestErrors_ClassifiedAndTransientRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"resource_not_found","message":"Requested resource not found"}`))
	})

	err := client.DeleteItem(context.Background(), "col-1", "gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCreateItem_SendsDraftFlag(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/collections/col-1/items", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["isDraft"])
		_, _ = w.Write([]byte(`{"id": "item-9", "isDraft": true, "fieldData": {"name": "New"}}`))
	})

	item, err := client.CreateItem(context.Background(), "col-1", map[string]any{"name": "New"}, true)
	require.NoError(t, err)
	assert.Equal(t, "item-9", item.ID)
	assert.True(t, item.IsDraft)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, parseRetryAfter("2"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("-1"))
	assert.Zero(t, parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}
